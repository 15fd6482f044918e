package parliament

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Archive is the local mirror of one business object. All access to the
// object goes through the archive's lock, so a local Set and a remote apply
// on the same key never interleave.
type Archive struct {
	mu  sync.Mutex
	key Key
	obj Object
}

// NewArchive wraps obj, deriving its key from the validating attribute.
func NewArchive(obj Object) (*Archive, error) {
	key, err := KeyOf(obj)
	if err != nil {
		return nil, err
	}
	return &Archive{key: key, obj: obj}, nil
}

// Key returns the archive's composite key.
func (a *Archive) Key() Key {
	return a.key
}

// Do runs fn with exclusive access to the mirrored object.
func (a *Archive) Do(fn func(obj Object) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return fn(a.obj)
}

// Lookup returns the value at expr, read under the archive lock.
func (a *Archive) Lookup(expr string) (any, error) {
	path, err := ParsePath(expr)
	if err != nil {
		return nil, err
	}
	var v any
	err = a.Do(func(obj Object) error {
		v, err = Lookup(obj, path)
		return err
	})
	return v, err
}

// Snapshot returns the JSON encoding of the mirrored object.
func (a *Archive) Snapshot() ([]byte, error) {
	var out []byte
	err := a.Do(func(obj Object) error {
		var err error
		out, err = json.Marshal(obj)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot %s: %w", a.key, err)
	}
	return out, nil
}

// Store is the process-wide table of archives keyed by composite key.
type Store struct {
	mu       sync.RWMutex
	archives map[Key]*Archive
}

// NewStore creates an empty archive store.
func NewStore() *Store {
	return &Store{archives: make(map[Key]*Archive)}
}

// Get returns the archive for key, if present.
func (s *Store) Get(key Key) (*Archive, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.archives[key]
	return a, ok
}

// Put inserts or replaces the archive under its key.
func (s *Store) Put(a *Archive) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.archives[a.key]; !exists {
		archives.Inc()
	}
	s.archives[a.key] = a
}

// Remove deletes the archive for key. Returns false if it was absent.
func (s *Store) Remove(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.archives[key]; !ok {
		return false
	}
	delete(s.archives, key)
	archives.Dec()
	return true
}

// Keys returns the keys of all archives, sorted by their string form.
func (s *Store) Keys() []Key {
	s.mu.RLock()
	keys := make([]Key, 0, len(s.archives))
	for k := range s.archives {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// Len returns the number of archives.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.archives)
}
