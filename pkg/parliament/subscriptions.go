package parliament

import (
	"sort"
	"sync"
)

// Subscriptions is the senator-side table of which observers want which
// archive keys, plus the reverse index used to withdraw an observer in bulk.
// It holds no durable state; senators rebuild it from the membership hash.
type Subscriptions struct {
	mu     sync.RWMutex
	byKey  map[Key]map[string]struct{}
	byName map[string][]Key
}

// NewSubscriptions creates an empty table.
func NewSubscriptions() *Subscriptions {
	return &Subscriptions{
		byKey:  make(map[Key]map[string]struct{}),
		byName: make(map[string][]Key),
	}
}

// Register subscribes name to keys, replacing any previous subscription of
// the same observer.
func (s *Subscriptions) Register(name string, keys []Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.withdrawLocked(name)
	for _, k := range keys {
		names, ok := s.byKey[k]
		if !ok {
			names = make(map[string]struct{})
			s.byKey[k] = names
		}
		names[name] = struct{}{}
	}
	s.byName[name] = append([]Key(nil), keys...)
}

// Withdraw removes every subscription of name. Returns false if name was unknown.
func (s *Subscriptions) Withdraw(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.withdrawLocked(name)
}

func (s *Subscriptions) withdrawLocked(name string) bool {
	keys, ok := s.byName[name]
	if !ok {
		return false
	}
	for _, k := range keys {
		names := s.byKey[k]
		delete(names, name)
		if len(names) == 0 {
			delete(s.byKey, k)
		}
	}
	delete(s.byName, name)
	return true
}

// Observers returns the sorted names of observers subscribed to key.
func (s *Subscriptions) Observers(key Key) []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.byKey[key]))
	for n := range s.byKey[key] {
		names = append(names, n)
	}
	s.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Keys returns the keys name is subscribed to.
func (s *Subscriptions) Keys(name string) []Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Key(nil), s.byName[name]...)
}

// Names returns the sorted names of all registered observers.
func (s *Subscriptions) Names() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.byName))
	for n := range s.byName {
		names = append(names, n)
	}
	s.mu.RUnlock()

	sort.Strings(names)
	return names
}
