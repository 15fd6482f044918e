package parliament

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
)

// Role is the membership a process holds in the parliament.
type Role string

const (
	// RoleSenator joins the ordered multicast group and sees every change.
	RoleSenator Role = "senator"

	// RoleMass observes a declared set of archive keys through its own queue.
	RoleMass Role = "mass"
)

// Validate checks if the Role is a valid enum value.
func (r Role) Validate() error {
	switch r {
	case RoleSenator, RoleMass:
		return nil
	default:
		return fmt.Errorf("unknown role: %q", r)
	}
}

// Defaults applied by New for zero-valued options.
const (
	DefaultRetention      = 10 * time.Minute
	DefaultPollInterval   = 100 * time.Millisecond
	DefaultBackoffUnit    = time.Second
	DefaultJoinAttempts   = 10
	DefaultPublishTimeout = 30 * time.Second
)

// Options configures a Parliament peer.
type Options struct {
	// Name identifies the peer. Observers are addressed by it, so it must be
	// unique in the group. Generated when empty.
	Name string
	Role Role

	// Subscriptions are the archive keys an observer receives updates for.
	Subscriptions []Key

	// Retention bounds how long multicast entries and idle queues survive.
	Retention time.Duration
	// PollInterval paces senate polls.
	PollInterval time.Duration
	// BackoffUnit scales join retries (attempt x unit) and watcher backoff
	// (1 to 32 units).
	BackoffUnit time.Duration
	// JoinAttempts bounds the join sequence retries.
	JoinAttempts int
	// PublishTimeout bounds publishing from Set and each join attempt.
	PublishTimeout time.Duration
	// QueueBlock is how long an observer blocks on its queue per receive.
	QueueBlock time.Duration

	// OnApply, if set, is called by the watcher after each envelope is applied.
	OnApply func(env *Envelope)
}

func (o *Options) applyDefaults() {
	if o.Retention <= 0 {
		o.Retention = DefaultRetention
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.BackoffUnit <= 0 {
		o.BackoffUnit = DefaultBackoffUnit
	}
	if o.JoinAttempts <= 0 {
		o.JoinAttempts = DefaultJoinAttempts
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = DefaultPublishTimeout
	}
	if o.QueueBlock <= 0 {
		o.QueueBlock = DefaultBlock
	}
	if o.Name == "" {
		o.Name = fmt.Sprintf("%s-%s", o.Role, uuid.NewString())
	}
}

// Parliament is one peer of the archive synchronization protocol.
type Parliament struct {
	opts       Options
	backend    *Backend
	senate     *Multicast
	mass       *Queue
	hooks      *Registry
	triggers   *Triggers
	store      *Store
	subs       *Subscriptions
	dispatcher *Dispatcher

	// cursor is owned by the goroutine running Join and Watch.
	cursor *Cursor
	joined atomic.Bool
}

// New creates a peer on backend. hooks and triggers may be nil; a nil
// registry means every attribute uses PlainHook.
func New(backend *Backend, opts Options, hooks *Registry, triggers *Triggers) (*Parliament, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend cannot be nil")
	}
	if err := opts.Role.Validate(); err != nil {
		return nil, err
	}
	opts.applyDefaults()
	if hooks == nil {
		hooks = NewRegistry()
	}
	if triggers == nil {
		triggers = NewTriggers()
	}

	p := &Parliament{
		opts:       opts,
		backend:    backend,
		senate:     backend.Multicast(opts.Retention),
		mass:       backend.Queue(opts.Retention, opts.QueueBlock),
		hooks:      hooks,
		triggers:   triggers,
		store:      NewStore(),
		subs:       NewSubscriptions(),
		dispatcher: NewDispatcher(),
	}

	p.dispatcher.Handle(PurposeUpdate, p.handleUpdate)
	p.dispatcher.Handle(PurposeCreateArchive, p.handleCreateArchive)
	p.dispatcher.Handle(PurposeCancelArchive, p.handleCancelArchive)
	p.dispatcher.Handle(PurposeRegisterObserver, p.handleRegisterObserver)
	p.dispatcher.Handle(PurposeCancelObserver, p.handleCancelObserver)

	return p, nil
}

// Name returns the peer name.
func (p *Parliament) Name() string { return p.opts.Name }

// Role returns the peer role.
func (p *Parliament) Role() Role { return p.opts.Role }

// Backend returns the coordination backend.
func (p *Parliament) Backend() *Backend { return p.backend }

// Store returns the local archive store.
func (p *Parliament) Store() *Store { return p.store }

// Subscriptions returns the observer subscription table (senators only keep one).
func (p *Parliament) Subscriptions() *Subscriptions { return p.subs }

// Joined reports whether the last Join succeeded.
func (p *Parliament) Joined() bool { return p.joined.Load() }

// Get returns the local archive for key.
func (p *Parliament) Get(key Key) (*Archive, bool) {
	return p.store.Get(key)
}

// Track inserts obj into the local store without telling anyone. Observers
// use it to install mirrors they loaded from the system of record.
func (p *Parliament) Track(obj Object) (*Archive, error) {
	a, err := NewArchive(obj)
	if err != nil {
		return nil, err
	}
	p.store.Put(a)
	return a, nil
}

// CreateArchive tracks obj locally and asks every senator to build its own
// mirror through the named trigger.
func (p *Parliament) CreateArchive(ctx context.Context, trigger string, obj Object) (*Archive, error) {
	a, err := NewArchive(obj)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", a.Key(), err)
	}
	env, err := NewEnvelope(PurposeCreateArchive, p.opts.Name, CreateArchive{
		Trigger: trigger,
		Key:     a.Key(),
		Object:  raw,
	})
	if err != nil {
		return nil, err
	}

	p.store.Put(a)

	pubCtx, cancel := context.WithTimeout(ctx, p.opts.PublishTimeout)
	defer cancel()
	if _, err := p.senate.Publish(pubCtx, env); err != nil {
		return a, fmt.Errorf("failed to announce archive %s: %w", a.Key(), err)
	}

	logEvent(p.opts.Name, "archive_created", map[string]any{"key": a.Key().String(), "trigger": trigger})
	return a, nil
}

// CancelArchive drops the local archive for key and asks every senator to do
// the same.
func (p *Parliament) CancelArchive(ctx context.Context, key Key) error {
	p.store.Remove(key)
	p.hooks.forget(key)

	env, err := NewEnvelope(PurposeCancelArchive, p.opts.Name, CancelArchive{Key: key})
	if err != nil {
		return err
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.opts.PublishTimeout)
	defer cancel()
	if _, err := p.senate.Publish(pubCtx, env); err != nil {
		return fmt.Errorf("failed to announce archive cancellation %s: %w", key, err)
	}

	logEvent(p.opts.Name, "archive_cancelled", map[string]any{"key": key.String()})
	return nil
}

// Set assigns value at expr (for example ".status" or ".pods[0].status") on
// the archive for key, running the capture protocol of the hook registered
// for the path's root attribute: build the update, apply it locally, then
// broadcast it.
//
// The returned error reports a failed local application (including a refused
// durable write) or a broadcast that did not complete within PublishTimeout.
func (p *Parliament) Set(ctx context.Context, key Key, expr string, value any) error {
	a, ok := p.store.Get(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoArchive, key)
	}

	d, err := Encode(expr, value)
	if err != nil {
		return err
	}
	attr := d.Path.Root()
	if attr == "" {
		return fmt.Errorf("path %s must start with an attribute", expr)
	}

	hook := p.hooks.Lookup(key.Class, attr)
	u := hook.BuildUpdate(key, attr, d)

	// The archive stays locked until the broadcast is published, so local
	// apply order and publish order agree.
	var success bool
	var applyErr, pubErr error
	_ = a.Do(func(obj Object) error {
		success, applyErr = hook.ApplyLocally(ctx, key, obj, d)

		pubCtx, cancel := context.WithTimeout(ctx, p.opts.PublishTimeout)
		defer cancel()
		pubErr = hook.Broadcast(pubCtx, broadcaster{p}, u, success)
		return nil
	})
	if pubErr != nil {
		glog.Errorf("[Parliament] Broadcast of %s%s failed: %v", key, d.Path, pubErr)
		return errors.Join(applyErr, fmt.Errorf("failed to broadcast %s%s: %w", key, d.Path, pubErr))
	}

	if glog.V(1) {
		glog.Infof("[Parliament] Set %s%s success=%t", key, d.Path, success)
	}
	return applyErr
}

// Withdraw removes this observer from the group. Senators hold no durable
// membership, so for them it is a no-op.
func (p *Parliament) Withdraw(ctx context.Context) error {
	if p.opts.Role != RoleMass {
		return nil
	}
	if err := p.Evict(ctx, p.opts.Name); err != nil {
		return err
	}
	p.joined.Store(false)
	return nil
}

// Evict withdraws the named observer: senators drop its subscriptions and
// the durable membership entry is removed. Used for observers that died
// without withdrawing.
func (p *Parliament) Evict(ctx context.Context, name string) error {
	env, err := NewEnvelope(PurposeCancelObserver, p.opts.Name, CancelObserver{Name: name})
	if err != nil {
		return err
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.opts.PublishTimeout)
	defer cancel()
	if _, err := p.senate.Publish(pubCtx, env); err != nil {
		return fmt.Errorf("failed to publish withdrawal of %s: %w", name, err)
	}
	if err := p.backend.RemoveMember(pubCtx, name); err != nil {
		return err
	}

	logEvent(p.opts.Name, "observer_withdrawn", map[string]any{"observer": name})
	return nil
}

// broadcaster adapts a Parliament to the Broadcaster interface hooks use.
type broadcaster struct {
	p *Parliament
}

func (b broadcaster) ToSenate(ctx context.Context, u *Update) error {
	env, err := NewEnvelope(PurposeUpdate, b.p.opts.Name, u)
	if err != nil {
		return err
	}
	_, err = b.p.senate.Publish(ctx, env)
	return err
}

func (b broadcaster) ToMass(ctx context.Context, u *Update) error {
	observers := b.p.subs.Observers(u.Key())
	if len(observers) == 0 {
		return nil
	}

	env, err := NewEnvelope(PurposeUpdate, b.p.opts.Name, u)
	if err != nil {
		return err
	}
	var errs []error
	for _, name := range observers {
		if err := b.p.mass.Push(ctx, name, env); err != nil {
			errs = append(errs, fmt.Errorf("observer %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (p *Parliament) handleUpdate(ctx context.Context, env *Envelope) error {
	var u Update
	if err := env.Decode(&u); err != nil {
		return err
	}
	if u.Value == nil {
		return fmt.Errorf("update for %s carries no value", u.Key())
	}

	a, ok := p.store.Get(u.Key())
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoArchive, u.Key())
	}

	hook := p.hooks.Lookup(u.ClassName, u.AttrName)
	return a.Do(func(obj Object) error {
		return hook.ApplyRemote(ctx, a.Key(), obj, &u)
	})
}

func (p *Parliament) handleCreateArchive(_ context.Context, env *Envelope) error {
	var c CreateArchive
	if err := env.Decode(&c); err != nil {
		return err
	}

	obj, err := p.triggers.Build(c.Trigger, c.Object)
	if err != nil {
		return err
	}
	a, err := NewArchive(obj)
	if err != nil {
		return err
	}
	if a.Key() != c.Key {
		return fmt.Errorf("trigger %s built %s, announced as %s", c.Trigger, a.Key(), c.Key)
	}

	p.store.Put(a)
	return nil
}

func (p *Parliament) handleCancelArchive(_ context.Context, env *Envelope) error {
	var c CancelArchive
	if err := env.Decode(&c); err != nil {
		return err
	}
	if !p.store.Remove(c.Key) {
		glog.V(1).Infof("[Parliament] Cancel for unknown archive %s", c.Key)
	}
	p.hooks.forget(c.Key)
	return nil
}

func (p *Parliament) handleRegisterObserver(_ context.Context, env *Envelope) error {
	var r RegisterObserver
	if err := env.Decode(&r); err != nil {
		return err
	}
	if r.Name == "" {
		return fmt.Errorf("observer registration without a name")
	}
	p.subs.Register(r.Name, r.Keys)
	logEvent(p.opts.Name, "observer_registered", map[string]any{"observer": r.Name, "keys": len(r.Keys)})
	return nil
}

func (p *Parliament) handleCancelObserver(_ context.Context, env *Envelope) error {
	var c CancelObserver
	if err := env.Decode(&c); err != nil {
		return err
	}
	if p.subs.Withdraw(c.Name) {
		logEvent(p.opts.Name, "observer_cancelled", map[string]any{"observer": c.Name})
	}
	return nil
}
