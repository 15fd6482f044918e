package parliament

import (
	"context"
	"fmt"
	"sync"
)

// Broadcaster delivers updates produced by a hook.
type Broadcaster interface {
	// ToSenate publishes u on the ordered multicast log.
	ToSenate(ctx context.Context, u *Update) error
	// ToMass pushes u to every observer subscribed to u's archive key.
	ToMass(ctx context.Context, u *Update) error
}

// Hook controls how changes to one (class, attribute) pair are captured,
// persisted, broadcast and applied on remote peers.
//
// ApplyLocally and ApplyRemote are called with the archive lock held.
type Hook interface {
	BuildUpdate(key Key, attr string, d *Descriptor) *Update
	ApplyLocally(ctx context.Context, key Key, obj Object, d *Descriptor) (bool, error)
	Broadcast(ctx context.Context, b Broadcaster, u *Update, success bool) error
	ApplyRemote(ctx context.Context, key Key, obj Object, u *Update) error
}

// Forgetter is implemented by hooks that keep per-archive state.
type Forgetter interface {
	Forget(key Key)
}

// PlainHook applies changes in memory only and always broadcasts them.
// It is the hook used for every attribute without an explicit registration.
type PlainHook struct{}

// BuildUpdate wraps d in an UPDATE payload for the archive identified by key.
func (PlainHook) BuildUpdate(key Key, attr string, d *Descriptor) *Update {
	return &Update{
		ClassName:     key.Class,
		ValidateAttr:  key.Attr,
		ValidateValue: key.Value,
		AttrName:      attr,
		Value:         d,
	}
}

// ApplyLocally assigns the value; it reports success unless navigation fails.
func (PlainHook) ApplyLocally(_ context.Context, _ Key, obj Object, d *Descriptor) (bool, error) {
	if err := DecodeAndApply(obj, d); err != nil {
		return false, err
	}
	return true, nil
}

// Broadcast sends successful updates to the senate and to subscribed observers.
func (PlainHook) Broadcast(ctx context.Context, b Broadcaster, u *Update, success bool) error {
	if !success {
		return nil
	}
	if err := b.ToSenate(ctx, u); err != nil {
		return err
	}
	return b.ToMass(ctx, u)
}

// ApplyRemote assigns the relayed value.
func (PlainHook) ApplyRemote(_ context.Context, _ Key, obj Object, u *Update) error {
	return DecodeAndApply(obj, u.Value)
}

type hookKey struct {
	class string
	attr  string
}

// Registry maps (class, attribute) to hooks. It is filled once at startup and
// sealed before the watcher starts.
type Registry struct {
	mu     sync.RWMutex
	hooks  map[hookKey]Hook
	sealed bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{hooks: make(map[hookKey]Hook)}
}

// Register binds h to (class, attr). Panics once the registry is sealed.
func (r *Registry) Register(class, attr string, h Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		panic(fmt.Sprintf("parliament: hook %s.%s registered after startup", class, attr))
	}
	r.hooks[hookKey{class, attr}] = h
}

// Lookup returns the hook for (class, attr), or PlainHook if none was registered.
func (r *Registry) Lookup(class, attr string) Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.hooks[hookKey{class, attr}]; ok {
		return h
	}
	return PlainHook{}
}

// Seal forbids further registration.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// forget tells every stateful hook of class that key is gone.
func (r *Registry) forget(key Key) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for hk, h := range r.hooks {
		if hk.class != key.Class {
			continue
		}
		if f, ok := h.(Forgetter); ok {
			f.Forget(key)
		}
	}
}
