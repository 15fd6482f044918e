package parliament

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// maxFetch bounds the number of entries read by a single MGET.
const maxFetch = 256

// Multicast is the ordered broadcast log shared by all senators.
// Every published envelope occupies parliament:{group}:senate:{index}, where
// index comes from a shared counter, and expires after the channel's
// retention window. One retention applies to every message on the channel.
type Multicast struct {
	backend   *Backend
	retention time.Duration
}

// Multicast returns the ordered log of the backend's group.
func (b *Backend) Multicast(retention time.Duration) *Multicast {
	return &Multicast{backend: b, retention: retention}
}

// Publish appends env to the log and returns its index. The first index is 0.
//
// The counter is advanced with an optimistic WATCH/MULTI/EXEC loop: read the
// counter, write the entry and the new counter in one transaction, and retry
// if another publisher advanced the counter first. Retries continue until ctx
// is done.
func (m *Multicast) Publish(ctx context.Context, env *Envelope) (int64, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return -1, fmt.Errorf("failed to marshal envelope: %w", err)
	}

	rdb := m.backend.rdb
	group := m.backend.group
	seqKey := SenateSeqKey(group)

	var index int64
	err = m.backend.retry(ctx, "senate_publish", func() error {
		return rdb.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := readSeq(ctx, tx, seqKey)
			if err != nil {
				return err
			}
			index = cur + 1

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, SenateEntryKey(group, index), payload, m.retention)
				pipe.Set(ctx, seqKey, index, 0)
				return nil
			})
			return err
		}, seqKey)
	})
	if err != nil {
		return -1, err
	}

	published.WithLabelValues("senate", string(env.Purpose)).Inc()
	return index, nil
}

// Head returns the index of the last published entry, or -1 if the log is empty.
func (m *Multicast) Head(ctx context.Context) (int64, error) {
	head, err := readSeq(ctx, m.backend.rdb, SenateSeqKey(m.backend.group))
	if err != nil {
		return -1, fmt.Errorf("failed to read senate sequence: %w", err)
	}
	return head, nil
}

// Cursor returns a consumer positioned at the current head: it receives only
// entries published after this call. Polls are paced to one per pollInterval.
func (m *Multicast) Cursor(ctx context.Context, pollInterval time.Duration) (*Cursor, error) {
	head, err := m.Head(ctx)
	if err != nil {
		return nil, err
	}

	limit := rate.Inf
	if pollInterval > 0 {
		limit = rate.Every(pollInterval)
	}
	return &Cursor{
		log:     m,
		last:    head,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

// Cursor tracks the highest index one consumer has read from the log.
// A Cursor is owned by a single goroutine.
type Cursor struct {
	log     *Multicast
	last    int64
	limiter *rate.Limiter
}

// Last returns the highest index this cursor has read.
func (c *Cursor) Last() int64 {
	return c.last
}

// Receive returns every envelope published since the previous call.
//
// Entries that expired before they were read are lost for this consumer and
// silently skipped; the cursor still moves past them.
func (c *Cursor) Receive(ctx context.Context) ([]*Envelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	head, err := c.log.Head(ctx)
	if err != nil {
		return nil, err
	}
	if head < c.last {
		glog.Warningf("[Senate] Sequence moved backwards (%d < %d), rewinding cursor", head, c.last)
		c.last = head
		return nil, nil
	}

	var envs []*Envelope
	group := c.log.backend.group
	for c.last < head {
		from := c.last + 1
		to := min(head, c.last+maxFetch)

		keys := make([]string, 0, to-from+1)
		for i := from; i <= to; i++ {
			keys = append(keys, SenateEntryKey(group, i))
		}
		vals, err := c.log.backend.rdb.MGet(ctx, keys...).Result()
		if err != nil {
			return envs, fmt.Errorf("failed to fetch senate entries %d..%d: %w", from, to, err)
		}

		for i, v := range vals {
			s, ok := v.(string)
			if !ok {
				lost.Inc()
				glog.V(1).Infof("[Senate] Entry %d expired before it was read", from+int64(i))
				continue
			}
			var env Envelope
			if err := json.Unmarshal([]byte(s), &env); err != nil {
				glog.Warningf("[Senate] Skipping undecodable entry %d: %v", from+int64(i), err)
				continue
			}
			envs = append(envs, &env)
		}
		c.last = to
	}
	return envs, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readSeq(ctx context.Context, g getter, key string) (int64, error) {
	cur, err := g.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return -1, nil
	}
	return cur, err
}
