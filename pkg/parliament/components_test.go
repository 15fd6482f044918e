package parliament

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	k, err := KeyOf(newWidget(42))
	require.NoError(t, err)
	assert.Equal(t, Key{Class: "Widget", Attr: "id", Value: "42"}, k)
	assert.Equal(t, "Widget/id/42", k.String())

	parsed, err := ParseKey(k.String())
	require.NoError(t, err)
	assert.Equal(t, k, parsed)

	// the value keeps any further slashes
	parsed, err = ParseKey("File/path/a/b")
	require.NoError(t, err)
	assert.Equal(t, "a/b", parsed.Value)

	for _, bad := range []string{"", "Widget", "Widget/id", "Widget//1", "/id/1"} {
		_, err := ParseKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestPurposeValidate(t *testing.T) {
	assert.NoError(t, PurposeUpdate.Validate())
	assert.NoError(t, PurposeCancelObserver.Validate())
	assert.ErrorIs(t, Purpose("GOSSIP").Validate(), ErrUnknownPurpose)
}

func TestEnvelope_DecodeError(t *testing.T) {
	env := &Envelope{Purpose: PurposeUpdate, Data: json.RawMessage(`[1,2]`)}
	var u Update
	err := env.Decode(&u)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UPDATE")
}

func TestStore(t *testing.T) {
	s := NewStore()
	a, err := NewArchive(newWidget(2))
	require.NoError(t, err)
	b, err := NewArchive(newWidget(1))
	require.NoError(t, err)

	s.Put(a)
	s.Put(b)
	s.Put(a)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []Key{widgetKey(1), widgetKey(2)}, s.Keys())

	got, ok := s.Get(widgetKey(2))
	require.True(t, ok)
	assert.Same(t, a, got)

	assert.True(t, s.Remove(widgetKey(2)))
	assert.False(t, s.Remove(widgetKey(2)))
	_, ok = s.Get(widgetKey(2))
	assert.False(t, ok)
}

func TestArchive_LookupAndSnapshot(t *testing.T) {
	a, err := NewArchive(newWidget(3))
	require.NoError(t, err)
	assert.Equal(t, widgetKey(3), a.Key())

	v, err := a.Lookup(".parts['p1'].state")
	require.NoError(t, err)
	assert.Equal(t, "idle", v)

	_, err = a.Lookup(".parts[9].state")
	assert.ErrorIs(t, err, ErrNavigation)

	raw, err := a.Snapshot()
	require.NoError(t, err)
	var back widget
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, 3, back.ID)
	assert.Len(t, back.Parts, 2)
}

func TestSubscriptions(t *testing.T) {
	s := NewSubscriptions()
	k1, k2, k3 := widgetKey(1), widgetKey(2), widgetKey(3)

	s.Register("b", []Key{k1, k2})
	s.Register("a", []Key{k1})
	assert.Equal(t, []string{"a", "b"}, s.Observers(k1))
	assert.Equal(t, []string{"b"}, s.Observers(k2))
	assert.Empty(t, s.Observers(k3))
	assert.Equal(t, []string{"a", "b"}, s.Names())

	t.Run("re-registration replaces", func(t *testing.T) {
		s.Register("b", []Key{k3})
		assert.Equal(t, []string{"a"}, s.Observers(k1))
		assert.Empty(t, s.Observers(k2))
		assert.Equal(t, []Key{k3}, s.Keys("b"))
	})

	t.Run("withdraw removes from every key", func(t *testing.T) {
		assert.True(t, s.Withdraw("b"))
		assert.False(t, s.Withdraw("b"))
		assert.Empty(t, s.Observers(k3))
		assert.Empty(t, s.Keys("b"))
		assert.Equal(t, []string{"a"}, s.Names())
	})
}

func TestTriggers(t *testing.T) {
	tr := NewTriggers()
	tr.Register("widget", decodeWidget)
	assert.Panics(t, func() { tr.Register("widget", decodeWidget) })

	obj, err := tr.Build("widget", json.RawMessage(`{"id":5,"name":"five"}`))
	require.NoError(t, err)
	assert.Equal(t, "five", obj.(*widget).Name)

	_, err = tr.Build("gadget", nil)
	assert.ErrorIs(t, err, ErrUnknownTrigger)
}

func TestDispatcher(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher()

	var seen []Purpose
	d.Handle(PurposeUpdate, func(_ context.Context, env *Envelope) error {
		seen = append(seen, env.Purpose)
		return nil
	})
	d.Handle(PurposeCancelArchive, func(context.Context, *Envelope) error {
		panic("boom")
	})
	d.Handle(PurposeCancelObserver, func(context.Context, *Envelope) error {
		return errors.New("handler failed")
	})

	t.Run("routes by purpose", func(t *testing.T) {
		require.NoError(t, d.Dispatch(ctx, &Envelope{Purpose: PurposeUpdate}))
		assert.Equal(t, []Purpose{PurposeUpdate}, seen)
	})

	t.Run("unknown purpose", func(t *testing.T) {
		err := d.Dispatch(ctx, &Envelope{Purpose: "GOSSIP"})
		assert.ErrorIs(t, err, ErrUnknownPurpose)
	})

	t.Run("panic becomes error", func(t *testing.T) {
		var err error
		assert.NotPanics(t, func() {
			err = d.Dispatch(ctx, &Envelope{Purpose: PurposeCancelArchive})
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("handler error is returned", func(t *testing.T) {
		assert.EqualError(t, d.Dispatch(ctx, &Envelope{Purpose: PurposeCancelObserver}), "handler failed")
	})
}

func TestWatcherBackOff(t *testing.T) {
	unit := 10 * time.Millisecond
	b := watcherBackOff(unit)

	var got []time.Duration
	for i := 0; i < 8; i++ {
		got = append(got, b.NextBackOff())
	}
	assert.Equal(t, []time.Duration{
		unit, 2 * unit, 4 * unit, 8 * unit, 16 * unit, 32 * unit, 32 * unit, 32 * unit,
	}, got)

	b.Reset()
	assert.Equal(t, unit, b.NextBackOff())
}

func TestLinearBackOff(t *testing.T) {
	l := &linearBackOff{unit: time.Second}
	assert.Equal(t, time.Second, l.NextBackOff())
	assert.Equal(t, 2*time.Second, l.NextBackOff())
	assert.Equal(t, 3*time.Second, l.NextBackOff())
	l.Reset()
	assert.Equal(t, time.Second, l.NextBackOff())
}
