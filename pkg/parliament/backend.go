package parliament

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"
)

// DefaultRetryDelay is the pause between publish attempts after a conflict or
// a transport error.
const DefaultRetryDelay = 10 * time.Millisecond

// Backend provides group-scoped Redis operations for the parliament.
// All keys are namespaced with the group name.
// The backend is thread-safe and can be used concurrently from multiple goroutines.
type Backend struct {
	rdb        *redis.Client
	group      string
	retryDelay time.Duration
}

// NewBackend creates a backend for the specified group.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - group: parliament group name (must not be empty)
//
// Returns an error if group is empty.
func NewBackend(redisOpts *redis.Options, group string) (*Backend, error) {
	if group == "" {
		return nil, fmt.Errorf("group name cannot be empty")
	}

	return &Backend{
		rdb:        redis.NewClient(redisOpts),
		group:      group,
		retryDelay: DefaultRetryDelay,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (b *Backend) Close() error {
	return b.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (b *Backend) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

// Group returns the group name keys are namespaced with.
func (b *Backend) Group() string {
	return b.group
}

// Redis exposes the underlying client for collaborators sharing the
// connection, such as a Redis-backed system of record.
func (b *Backend) Redis() *redis.Client {
	return b.rdb
}

// AddMember durably records an observer and its subscribed keys so senators
// joining later can rebuild the subscription table.
// Stored in the hash parliament:{group}:members, field=name, value=JSON keys.
func (b *Backend) AddMember(ctx context.Context, name string, keys []Key) error {
	raw, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("failed to marshal member keys: %w", err)
	}
	if err := b.rdb.HSet(ctx, MembersKey(b.group), name, string(raw)).Err(); err != nil {
		return fmt.Errorf("failed to record member %s: %w", name, err)
	}
	return nil
}

// RemoveMember deletes an observer from the durable membership hash.
func (b *Backend) RemoveMember(ctx context.Context, name string) error {
	if err := b.rdb.HDel(ctx, MembersKey(b.group), name).Err(); err != nil {
		return fmt.Errorf("failed to remove member %s: %w", name, err)
	}
	return nil
}

// Members returns the durable membership as observer name -> keys.
// Returns an empty map if nobody is registered (not an error).
// Entries that fail to decode are logged and skipped.
func (b *Backend) Members(ctx context.Context) (map[string][]Key, error) {
	raw, err := b.rdb.HGetAll(ctx, MembersKey(b.group)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read members: %w", err)
	}

	members := make(map[string][]Key, len(raw))
	for name, keysJSON := range raw {
		var keys []Key
		if err := json.Unmarshal([]byte(keysJSON), &keys); err != nil {
			glog.Warningf("[Backend] Skipping member %s with undecodable keys: %v", name, err)
			continue
		}
		members[name] = keys
	}
	return members, nil
}

// retry runs fn until it succeeds or ctx is done, pausing retryDelay between
// attempts. Publishing never gives up on its own.
func (b *Backend) retry(ctx context.Context, op string, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			publishConflicts.WithLabelValues(op).Inc()
		} else {
			glog.Warningf("[Backend] %s attempt %d failed: %v", op, attempt, err)
			publishRetries.WithLabelValues(op).Inc()
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s abandoned after %d attempts: %w (last error: %v)", op, attempt, ctx.Err(), err)
		case <-time.After(b.retryDelay):
		}
	}
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
