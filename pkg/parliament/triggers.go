package parliament

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Constructor builds an archived object from a CREATE_ARCHIVE payload.
type Constructor func(raw json.RawMessage) (Object, error)

// Triggers maps trigger names to archive constructors.
type Triggers struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewTriggers creates an empty trigger registry.
func NewTriggers() *Triggers {
	return &Triggers{ctors: make(map[string]Constructor)}
}

// Register binds name to ctor. Registering the same name twice panics.
func (t *Triggers) Register(name string, ctor Constructor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, dup := t.ctors[name]; dup {
		panic(fmt.Sprintf("parliament: trigger %q registered twice", name))
	}
	t.ctors[name] = ctor
}

// Build constructs an object through the named trigger.
func (t *Triggers) Build(name string, raw json.RawMessage) (Object, error) {
	t.mu.RLock()
	ctor, ok := t.ctors[name]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTrigger, name)
	}
	return ctor(raw)
}
