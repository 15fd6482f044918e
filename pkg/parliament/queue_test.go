package parliament

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_PushAndReceiveFIFO(t *testing.T) {
	b, mr := setupTestBackend(t)
	ctx := context.Background()
	q := b.Queue(time.Minute, 50*time.Millisecond)

	for _, name := range []string{"first", "second"} {
		require.NoError(t, q.Push(ctx, "dashboard", mustEnvelope(t, PurposeCancelObserver, "s", CancelObserver{Name: name})))
	}

	n, err := q.Len(ctx, "dashboard")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Greater(t, mr.TTL(MassQueueKey("test-group", "dashboard")), time.Duration(0))

	for _, want := range []string{"first", "second"} {
		envs, err := q.Receive(ctx, "dashboard")
		require.NoError(t, err)
		require.Len(t, envs, 1)
		var co CancelObserver
		require.NoError(t, envs[0].Decode(&co))
		assert.Equal(t, want, co.Name)
	}
}

func TestQueue_ReceiveTimesOutEmpty(t *testing.T) {
	b, _ := setupTestBackend(t)
	q := b.Queue(time.Minute, 50*time.Millisecond)

	envs, err := q.Receive(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, envs)
}

func TestQueue_ObserversAreIsolated(t *testing.T) {
	b, _ := setupTestBackend(t)
	ctx := context.Background()
	q := b.Queue(time.Minute, 50*time.Millisecond)

	require.NoError(t, q.Push(ctx, "a", mustEnvelope(t, PurposeCancelObserver, "s", CancelObserver{Name: "for-a"})))

	envs, err := q.Receive(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, envs)

	n, err := q.Len(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestQueue_UndecodableEntryIsDropped(t *testing.T) {
	b, mr := setupTestBackend(t)
	q := b.Queue(time.Minute, 50*time.Millisecond)

	_, err := mr.Push(MassQueueKey("test-group", "a"), "garbage")
	require.NoError(t, err)

	envs, err := q.Receive(context.Background(), "a")
	require.NoError(t, err)
	assert.Empty(t, envs)
	assert.False(t, mr.Exists(MassQueueKey("test-group", "a")))
}

func TestQueue_UnreadQueueExpires(t *testing.T) {
	b, mr := setupTestBackend(t)
	q := b.Queue(time.Second, 50*time.Millisecond)

	require.NoError(t, q.Push(context.Background(), "dead", mustEnvelope(t, PurposeCancelObserver, "s", CancelObserver{Name: "x"})))
	mr.FastForward(2 * time.Second)
	assert.False(t, mr.Exists(MassQueueKey("test-group", "dead")))
}

func TestBackend_Members(t *testing.T) {
	b, mr := setupTestBackend(t)
	ctx := context.Background()

	members, err := b.Members(ctx)
	require.NoError(t, err)
	assert.Empty(t, members)

	keys := []Key{widgetKey(1), widgetKey(2)}
	require.NoError(t, b.AddMember(ctx, "dashboard", keys))
	mr.HSet(MembersKey("test-group"), "broken", "{not json")

	members, err = b.Members(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string][]Key{"dashboard": keys}, members)

	require.NoError(t, b.RemoveMember(ctx, "dashboard"))
	members, err = b.Members(ctx)
	require.NoError(t, err)
	assert.NotContains(t, members, "dashboard")
}

func TestNewBackend_RequiresGroup(t *testing.T) {
	_, err := NewBackend(nil, "")
	assert.Error(t, err)
}

func TestPublish_AbandonedWhenContextDone(t *testing.T) {
	b, mr := setupTestBackend(t)
	mr.SetError("LOADING Redis is loading the dataset in memory")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := b.Multicast(time.Minute).Publish(ctx, mustEnvelope(t, PurposeCancelObserver, "a", CancelObserver{Name: "x"}))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
