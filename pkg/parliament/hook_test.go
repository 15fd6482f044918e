package parliament

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainHook(t *testing.T) {
	ctx := context.Background()
	w := newWidget(1)
	key := widgetKey(1)

	d, err := Encode(".name", "renamed")
	require.NoError(t, err)

	hook := PlainHook{}
	u := hook.BuildUpdate(key, "name", d)
	assert.Equal(t, key, u.Key())
	assert.Equal(t, "name", u.AttrName)

	ok, err := hook.ApplyLocally(ctx, key, w, d)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "renamed", w.Name)

	t.Run("broadcasts on success", func(t *testing.T) {
		b := &recordingBroadcaster{}
		require.NoError(t, hook.Broadcast(ctx, b, u, true))
		assert.Len(t, b.senate, 1)
		assert.Len(t, b.mass, 1)
	})

	t.Run("silent on failure", func(t *testing.T) {
		b := &recordingBroadcaster{}
		require.NoError(t, hook.Broadcast(ctx, b, u, false))
		assert.Empty(t, b.senate)
		assert.Empty(t, b.mass)
	})

	t.Run("navigation failure reports no success", func(t *testing.T) {
		bad, err := Encode(".nope", 1)
		require.NoError(t, err)
		ok, err := hook.ApplyLocally(ctx, key, w, bad)
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrNavigation)
	})
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	ph := NewPathHook(newMemRecorder())
	r.Register("Widget", "parts", ph)

	assert.Same(t, ph, r.Lookup("Widget", "parts"))
	assert.Equal(t, PlainHook{}, r.Lookup("Widget", "name"))
	assert.Equal(t, PlainHook{}, r.Lookup("Other", "parts"))

	r.Seal()
	assert.Panics(t, func() { r.Register("Widget", "name", PlainHook{}) })
}

func TestRegistry_ForgetReachesStatefulHooks(t *testing.T) {
	r := NewRegistry()
	ph := NewPathHook(newMemRecorder())
	r.Register("Widget", "parts", ph)

	key := widgetKey(1)
	ph.remember(key, ".parts[0].state", 9)
	ph.remember(widgetKey(2), ".parts[0].state", 4)

	r.forget(key)
	assert.Equal(t, int64(0), ph.LastOrder(key, ".parts[0].state"))
	assert.Equal(t, int64(4), ph.LastOrder(widgetKey(2), ".parts[0].state"))
}

func TestPathHook_ApplyLocally(t *testing.T) {
	ctx := context.Background()
	key := widgetKey(1)

	t.Run("committed write is stamped and applied", func(t *testing.T) {
		rec := newMemRecorder()
		hook := NewPathHook(rec)
		w := newWidget(1)

		d, err := Encode(".parts[0].state", "busy")
		require.NoError(t, err)

		ok, err := hook.ApplyLocally(ctx, key, w, d)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "busy", w.Parts[0].State)
		require.True(t, d.Relayed())
		assert.Equal(t, int64(1), *d.Timestamp)
		assert.Equal(t, int64(1), hook.LastOrder(key, ".parts[0].state"))

		require.Len(t, rec.writes, 1)
		assert.JSONEq(t, `"idle"`, string(rec.writes[0].Expect))
		assert.Equal(t, ".parts[0].state", rec.writes[0].Path)
	})

	t.Run("refused write leaves the object untouched", func(t *testing.T) {
		rec := newMemRecorder()
		rec.err = errors.New("record store offline")
		hook := NewPathHook(rec)
		w := newWidget(1)

		d, err := Encode(".parts[0].state", "busy")
		require.NoError(t, err)

		ok, err := hook.ApplyLocally(ctx, key, w, d)
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrDurableWrite)
		assert.Equal(t, "idle", w.Parts[0].State)
		assert.False(t, d.Relayed())
	})

	t.Run("stale expectation is refused", func(t *testing.T) {
		rec := newMemRecorder()
		hook := NewPathHook(rec)
		a, b := newWidget(1), newWidget(1)

		da, _ := Encode(".parts[0].state", "busy")
		ok, err := hook.ApplyLocally(ctx, key, a, da)
		require.NoError(t, err)
		require.True(t, ok)

		// b still believes the part is idle
		db, _ := Encode(".parts[0].state", "draining")
		ok, err = hook.ApplyLocally(ctx, key, b, db)
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrStale)
		assert.ErrorIs(t, err, ErrDurableWrite)
	})

	t.Run("relayed descriptor never reports success", func(t *testing.T) {
		hook := NewPathHook(newMemRecorder())
		w := newWidget(1)
		d, _ := Encode(".parts[1].state", "busy")
		d.Stamp(5)

		ok, err := hook.ApplyLocally(ctx, key, w, d)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, "busy", w.Parts[1].State)
	})
}

func TestPathHook_BroadcastGating(t *testing.T) {
	ctx := context.Background()
	hook := NewPathHook(newMemRecorder())
	d, _ := Encode(".parts[0].state", "busy")
	u := hook.BuildUpdate(widgetKey(1), "parts", d)

	t.Run("failed attempt reaches only the senate", func(t *testing.T) {
		b := &recordingBroadcaster{}
		require.NoError(t, hook.Broadcast(ctx, b, u, false))
		assert.Len(t, b.senate, 1)
		assert.Empty(t, b.mass)
	})

	t.Run("committed write reaches both", func(t *testing.T) {
		b := &recordingBroadcaster{}
		require.NoError(t, hook.Broadcast(ctx, b, u, true))
		assert.Len(t, b.senate, 1)
		assert.Len(t, b.mass, 1)
	})

	t.Run("errors are joined", func(t *testing.T) {
		b := &recordingBroadcaster{err: errors.New("redis down")}
		err := hook.Broadcast(ctx, b, u, true)
		require.Error(t, err)
		assert.Len(t, b.mass, 1, "observers are tried even when the senate fails")
	})
}

func TestPathHook_ApplyRemoteOrdering(t *testing.T) {
	ctx := context.Background()
	key := widgetKey(1)

	relayed := func(value string, order int64) *Update {
		d, err := Encode(".parts[0].state", value)
		require.NoError(t, err)
		d.Stamp(order)
		return PlainHook{}.BuildUpdate(key, "parts", d)
	}

	t.Run("in order", func(t *testing.T) {
		hook := NewPathHook(newMemRecorder())
		w := newWidget(1)
		require.NoError(t, hook.ApplyRemote(ctx, key, w, relayed("busy", 3)))
		require.NoError(t, hook.ApplyRemote(ctx, key, w, relayed("done", 4)))
		assert.Equal(t, "done", w.Parts[0].State)
	})

	t.Run("out of order keeps the newest", func(t *testing.T) {
		hook := NewPathHook(newMemRecorder())
		w := newWidget(1)
		require.NoError(t, hook.ApplyRemote(ctx, key, w, relayed("done", 4)))
		require.NoError(t, hook.ApplyRemote(ctx, key, w, relayed("busy", 3)))
		assert.Equal(t, "done", w.Parts[0].State)
		assert.Equal(t, int64(4), hook.LastOrder(key, ".parts[0].state"))
	})

	t.Run("duplicate order is discarded", func(t *testing.T) {
		hook := NewPathHook(newMemRecorder())
		w := newWidget(1)
		require.NoError(t, hook.ApplyRemote(ctx, key, w, relayed("busy", 3)))
		w.Parts[0].State = "local"
		require.NoError(t, hook.ApplyRemote(ctx, key, w, relayed("busy", 3)))
		assert.Equal(t, "local", w.Parts[0].State)
	})

	t.Run("uncommitted attempt is ignored", func(t *testing.T) {
		hook := NewPathHook(newMemRecorder())
		w := newWidget(1)
		d, _ := Encode(".parts[0].state", "busy")
		require.NoError(t, hook.ApplyRemote(ctx, key, w, PlainHook{}.BuildUpdate(key, "parts", d)))
		assert.Equal(t, "idle", w.Parts[0].State)
	})

	t.Run("paths are ordered independently", func(t *testing.T) {
		hook := NewPathHook(newMemRecorder())
		w := newWidget(1)
		require.NoError(t, hook.ApplyRemote(ctx, key, w, relayed("busy", 7)))

		d, _ := Encode(".parts[1].state", "busy")
		d.Stamp(2)
		require.NoError(t, hook.ApplyRemote(ctx, key, w, PlainHook{}.BuildUpdate(key, "parts", d)))
		assert.Equal(t, "busy", w.Parts[1].State)
	})
}
