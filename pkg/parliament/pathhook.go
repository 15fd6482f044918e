package parliament

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/golang/glog"
)

// Write is a compare-and-set request against the system of record.
// It lands only if the stored value at (Key, Path) is absent or equal to Expect.
type Write struct {
	Key    Key
	Path   string
	Value  json.RawMessage
	Expect json.RawMessage
}

// Recorder is the system of record used by PathHook. Record durably stores
// the write and returns the order token it was assigned; tokens are positive
// and increase with every landed write. A write that does not land returns an
// error wrapping ErrStale.
type Recorder interface {
	Record(ctx context.Context, w Write) (int64, error)
}

// PathHook orders writes to a nested field by the token the system of record
// assigns, instead of by arrival order. Peers racing on the same path converge
// on the write with the highest token, and only committed writes reach
// observers.
type PathHook struct {
	PlainHook

	recorder Recorder

	mu     sync.Mutex
	orders map[Key]map[string]int64
}

// NewPathHook creates a path-aware hook writing through recorder.
func NewPathHook(recorder Recorder) *PathHook {
	return &PathHook{
		recorder: recorder,
		orders:   make(map[Key]map[string]int64),
	}
}

// ApplyLocally performs the durable write for a locally originated change
// and, once it lands, applies it in memory and stamps d with its order token.
// A relayed descriptor is applied through the ordering rule and never reports
// success, so a receiver never re-broadcasts.
func (p *PathHook) ApplyLocally(ctx context.Context, key Key, obj Object, d *Descriptor) (bool, error) {
	if d.Relayed() {
		return false, p.applyRelayed(key, obj, d)
	}

	canonical, err := Canonical(obj, d.Path)
	if err != nil {
		return false, err
	}
	d.Path = canonical

	cur, err := Lookup(obj, d.Path)
	if err != nil {
		return false, err
	}
	expect, err := json.Marshal(cur)
	if err != nil {
		return false, fmt.Errorf("failed to encode current value of %s: %w", d.Path, err)
	}

	order, err := p.recorder.Record(ctx, Write{
		Key:    key,
		Path:   d.Path.String(),
		Value:  d.Value,
		Expect: expect,
	})
	if err != nil {
		return false, fmt.Errorf("%w for %s%s: %w", ErrDurableWrite, key, d.Path, err)
	}

	d.Stamp(order)
	p.remember(key, d.Path.String(), order)

	if err := DecodeAndApply(obj, d); err != nil {
		// The write is committed; observers must still learn about it.
		glog.Errorf("[PathHook] %s%s committed with order %d but local apply failed: %v", key, d.Path, order, err)
		return true, err
	}
	return true, nil
}

// Broadcast always informs the senate, so every senator sees every attempt,
// and informs observers only of committed writes.
func (p *PathHook) Broadcast(ctx context.Context, b Broadcaster, u *Update, success bool) error {
	err := b.ToSenate(ctx, u)
	if success {
		err = errors.Join(err, b.ToMass(ctx, u))
	}
	return err
}

// ApplyRemote applies a relayed update if its order token is newer than the
// last one applied for the same path. Attempts that never landed carry no
// token and are dropped.
func (p *PathHook) ApplyRemote(_ context.Context, key Key, obj Object, u *Update) error {
	d := u.Value
	if !d.Relayed() {
		glog.V(1).Infof("[PathHook] Ignoring uncommitted attempt on %s%s", key, d.Path)
		return nil
	}
	return p.applyRelayed(key, obj, d)
}

func (p *PathHook) applyRelayed(key Key, obj Object, d *Descriptor) error {
	canonical, err := Canonical(obj, d.Path)
	if err != nil {
		return err
	}
	d.Path = canonical
	path := d.Path.String()
	order := *d.Timestamp

	if last := p.last(key, path); order <= last {
		staleDiscards.Inc()
		glog.V(1).Infof("[PathHook] Discarding %s%s order %d (last applied %d)", key, path, order, last)
		return nil
	}

	if err := DecodeAndApply(obj, d); err != nil {
		return err
	}
	p.remember(key, path, order)
	return nil
}

// Forget drops the remembered order tokens of key.
func (p *PathHook) Forget(key Key) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.orders, key)
}

// LastOrder returns the order token last applied for (key, path), or 0.
func (p *PathHook) LastOrder(key Key, path string) int64 {
	return p.last(key, path)
}

func (p *PathHook) last(key Key, path string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.orders[key][path]
}

func (p *PathHook) remember(key Key, path string, order int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	paths, ok := p.orders[key]
	if !ok {
		paths = make(map[string]int64)
		p.orders[key] = paths
	}
	if order > paths[path] {
		paths[path] = order
	}
}
