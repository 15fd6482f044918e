package parliament

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// setupTestBackend creates a Backend on an in-memory Redis.
func setupTestBackend(t *testing.T) (*Backend, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	b, err := NewBackend(&redis.Options{Addr: mr.Addr()}, "test-group")
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	return b, mr
}

// widget is a small archivable object: .name, .parts[i].state.
type widget struct {
	ID    int     `json:"id"`
	Name  string  `json:"name"`
	Parts []*part `json:"parts"`
}

type part struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

type widgetParts []*part

func (w *widget) ClassName() string    { return "Widget" }
func (w *widget) ValidateAttr() string { return "id" }

func (w *widget) GetAttr(name string) (any, error) {
	switch name {
	case "id":
		return w.ID, nil
	case "name":
		return w.Name, nil
	case "parts":
		return widgetParts(w.Parts), nil
	}
	return nil, fmt.Errorf("%w: Widget has no attribute %q", ErrNavigation, name)
}

func (w *widget) SetAttr(name string, raw json.RawMessage) error {
	switch name {
	case "name":
		return json.Unmarshal(raw, &w.Name)
	case "parts":
		return json.Unmarshal(raw, &w.Parts)
	}
	return fmt.Errorf("%w: Widget has no settable attribute %q", ErrNavigation, name)
}

func (ps widgetParts) GetIndex(key IndexKey) (any, error) {
	if key.IsText {
		for _, p := range ps {
			if p.Name == key.Text {
				return p, nil
			}
		}
		return nil, fmt.Errorf("%w: no part %q", ErrNavigation, key.Text)
	}
	if key.Pos < 0 || key.Pos >= len(ps) {
		return nil, fmt.Errorf("%w: part index %d out of range", ErrNavigation, key.Pos)
	}
	return ps[key.Pos], nil
}

func (p *part) GetAttr(name string) (any, error) {
	switch name {
	case "name":
		return p.Name, nil
	case "state":
		return p.State, nil
	}
	return nil, fmt.Errorf("%w: part has no attribute %q", ErrNavigation, name)
}

func (p *part) SetAttr(name string, raw json.RawMessage) error {
	switch name {
	case "state":
		return json.Unmarshal(raw, &p.State)
	}
	return fmt.Errorf("%w: part has no settable attribute %q", ErrNavigation, name)
}

func newWidget(id int) *widget {
	return &widget{
		ID:    id,
		Name:  "w" + strconv.Itoa(id),
		Parts: []*part{{Name: "p0", State: "idle"}, {Name: "p1", State: "idle"}},
	}
}

func decodeWidget(raw json.RawMessage) (Object, error) {
	var w widget
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func widgetKey(id int) Key {
	return Key{Class: "Widget", Attr: "id", Value: strconv.Itoa(id)}
}

// memRecorder is an in-memory compare-and-set system of record.
type memRecorder struct {
	mu     sync.Mutex
	values map[string]json.RawMessage
	order  int64
	err    error
	writes []Write
}

func newMemRecorder() *memRecorder {
	return &memRecorder{values: make(map[string]json.RawMessage)}
}

func (r *memRecorder) Record(_ context.Context, w Write) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, w)
	if r.err != nil {
		return 0, r.err
	}
	id := w.Key.String() + w.Path
	if cur, ok := r.values[id]; ok && !bytes.Equal(cur, w.Expect) {
		return 0, ErrStale
	}
	r.values[id] = w.Value
	r.order++
	return r.order, nil
}

// recordingBroadcaster captures what a hook broadcasts.
type recordingBroadcaster struct {
	senate []*Update
	mass   []*Update
	err    error
}

func (b *recordingBroadcaster) ToSenate(_ context.Context, u *Update) error {
	b.senate = append(b.senate, u)
	return b.err
}

func (b *recordingBroadcaster) ToMass(_ context.Context, u *Update) error {
	b.mass = append(b.mass, u)
	return b.err
}
