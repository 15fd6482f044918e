package parliament

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang/glog"
)

// maxBackoffUnits caps the watcher's exponential backoff.
const maxBackoffUnits = 32

// linearBackOff waits attempt x unit before each retry.
type linearBackOff struct {
	unit    time.Duration
	attempt int
}

func (l *linearBackOff) NextBackOff() time.Duration {
	l.attempt++
	return time.Duration(l.attempt) * l.unit
}

func (l *linearBackOff) Reset() {
	l.attempt = 0
}

// watcherBackOff doubles from one unit up to maxBackoffUnits units, without
// jitter, and never gives up.
func watcherBackOff(unit time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = unit
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = maxBackoffUnits * unit
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Run joins the group and then watches it until ctx is cancelled.
// A failed join is logged and the peer keeps running un-joined.
func (p *Parliament) Run(ctx context.Context) error {
	if err := p.Join(ctx); err != nil && ctx.Err() != nil {
		return nil
	}
	return p.Watch(ctx)
}

// Join performs the joining state of the lifecycle.
//
// Observers record their membership durably and then announce it with
// REGISTER_OBSERVER. Senators position their multicast cursor first and then
// rebuild the subscription table from the membership hash, so a registration
// is either in the hash or after the cursor.
//
// The sequence is retried up to JoinAttempts times with linear backoff. When
// every attempt fails the error is logged at fatal level and returned, but
// the peer stays usable.
func (p *Parliament) Join(ctx context.Context) error {
	p.hooks.Seal()

	attempt := 0
	op := func() error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, p.opts.PublishTimeout)
		defer cancel()
		return p.joinOnce(attemptCtx)
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{unit: p.opts.BackoffUnit}, uint64(p.opts.JoinAttempts-1)),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		glog.Warningf("[Parliament] Join attempt %d of %s failed, retrying in %v: %v", attempt, p.opts.Name, wait, err)
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		glog.Errorf("[Parliament] FATAL: %s could not join group %s after %d attempts; state sync is degraded: %v",
			p.opts.Name, p.backend.group, attempt, err)
		logEvent(p.opts.Name, "join_failed", map[string]any{"role": string(p.opts.Role), "attempts": attempt, "error": err.Error()})
		return fmt.Errorf("failed to join after %d attempts: %w", attempt, err)
	}

	p.joined.Store(true)
	logEvent(p.opts.Name, "joined", map[string]any{"role": string(p.opts.Role), "attempts": attempt})
	return nil
}

func (p *Parliament) joinOnce(ctx context.Context) error {
	if p.opts.Role == RoleMass {
		if err := p.backend.AddMember(ctx, p.opts.Name, p.opts.Subscriptions); err != nil {
			return err
		}
		env, err := NewEnvelope(PurposeRegisterObserver, p.opts.Name, RegisterObserver{
			Name: p.opts.Name,
			Keys: p.opts.Subscriptions,
		})
		if err != nil {
			return backoff.Permanent(err)
		}
		if _, err := p.senate.Publish(ctx, env); err != nil {
			return fmt.Errorf("failed to announce observer: %w", err)
		}
		return nil
	}

	cursor, err := p.senate.Cursor(ctx, p.opts.PollInterval)
	if err != nil {
		return err
	}
	members, err := p.backend.Members(ctx)
	if err != nil {
		return err
	}
	for name, keys := range members {
		p.subs.Register(name, keys)
	}
	p.cursor = cursor
	return nil
}

// Watch performs the watching state: it consumes envelopes (the multicast
// log for senators, the peer's own queue for observers) and dispatches them
// until ctx is cancelled. Handler failures are logged and skipped; receive
// failures back off exponentially and the loop resumes without re-joining.
func (p *Parliament) Watch(ctx context.Context) error {
	glog.Infof("[Watcher] %s watching group %s as %s", p.opts.Name, p.backend.group, p.opts.Role)

	bo := watcherBackOff(p.opts.BackoffUnit)
	for {
		if ctx.Err() != nil {
			glog.Infof("[Watcher] %s shutting down", p.opts.Name)
			return nil
		}

		envs, err := p.receive(ctx)
		for _, env := range envs {
			p.apply(ctx, env)
		}
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			transportErrors.Inc()
			wait := bo.NextBackOff()
			glog.Errorf("[Watcher] Receive failed, backing off %v: %v", wait, err)
			select {
			case <-ctx.Done():
			case <-time.After(wait):
			}
			continue
		}
		bo.Reset()
	}
}

func (p *Parliament) receive(ctx context.Context) ([]*Envelope, error) {
	if p.opts.Role == RoleMass {
		return p.mass.Receive(ctx, p.opts.Name)
	}
	if p.cursor == nil {
		cursor, err := p.senate.Cursor(ctx, p.opts.PollInterval)
		if err != nil {
			return nil, err
		}
		p.cursor = cursor
	}
	return p.cursor.Receive(ctx)
}

func (p *Parliament) apply(ctx context.Context, env *Envelope) {
	if env.Origin == p.opts.Name {
		return
	}
	if err := p.dispatcher.Dispatch(ctx, env); err != nil {
		glog.Errorf("[Watcher] %s from %s dropped: %v", env.Purpose, env.Origin, err)
		return
	}
	if glog.V(2) {
		glog.Infof("[Watcher] Applied %s from %s", env.Purpose, env.Origin)
	}
	if p.opts.OnApply != nil {
		p.opts.OnApply(env)
	}
}
