package parliament

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"
)

// DefaultBlock is how long Queue.Receive waits for an entry before returning
// an empty batch, so callers can observe cancellation.
const DefaultBlock = time.Second

// Queue is the per-observer unicast FIFO. Each push refreshes the queue's
// expiry, so a queue nobody drains disappears after the retention window.
type Queue struct {
	backend   *Backend
	retention time.Duration
	block     time.Duration
}

// Queue returns the unicast queues of the backend's group.
func (b *Backend) Queue(retention, block time.Duration) *Queue {
	if block <= 0 {
		block = DefaultBlock
	}
	return &Queue{backend: b, retention: retention, block: block}
}

// Push appends env to the named observer's queue, retrying until ctx is done.
func (q *Queue) Push(ctx context.Context, name string, env *Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	key := MassQueueKey(q.backend.group, name)
	err = q.backend.retry(ctx, "mass_push", func() error {
		_, err := q.backend.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, key, payload)
			if q.retention > 0 {
				pipe.Expire(ctx, key, q.retention)
			}
			return nil
		})
		return err
	})
	if err != nil {
		return err
	}

	published.WithLabelValues("mass", string(env.Purpose)).Inc()
	return nil
}

// Receive blocks up to the queue's block time for the next entry of the named
// observer and pops it. Returns an empty batch when nothing arrived.
func (q *Queue) Receive(ctx context.Context, name string) ([]*Envelope, error) {
	res, err := q.backend.rdb.BLPop(ctx, q.block, MassQueueKey(q.backend.group, name)).Result()
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop from queue %s: %w", name, err)
	}

	// BLPOP returns [key, value]
	var env Envelope
	if err := json.Unmarshal([]byte(res[1]), &env); err != nil {
		glog.Warningf("[Mass] Dropping undecodable entry from queue %s: %v", name, err)
		return nil, nil
	}
	return []*Envelope{&env}, nil
}

// Len returns the number of entries waiting for the named observer.
func (q *Queue) Len(ctx context.Context, name string) (int64, error) {
	n, err := q.backend.rdb.LLen(ctx, MassQueueKey(q.backend.group, name)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue length for %s: %w", name, err)
	}
	return n, nil
}
