package record

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dyluth/parliament/pkg/parliament"
	"github.com/redis/go-redis/v9"
)

// recordScript performs the compare-and-set and assigns the order token
// atomically. Returns -1 when the stored value differs from the expectation.
//
// KEYS[1] record hash, KEYS[2] order counter; ARGV[1] value, ARGV[2] expected.
var recordScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'value')
if cur and cur ~= ARGV[2] then
	return -1
end
local order = redis.call('INCR', KEYS[2])
redis.call('HSET', KEYS[1], 'value', ARGV[1], 'order', order)
return order
`)

// Redis is a system of record shared by every peer of a group.
type Redis struct {
	rdb   *redis.Client
	group string
}

// NewRedis creates a record store on rdb, namespaced by group.
func NewRedis(rdb *redis.Client, group string) *Redis {
	return &Redis{rdb: rdb, group: group}
}

func (r *Redis) recordKey(key parliament.Key, path string) string {
	return fmt.Sprintf("parliament:%s:record:%s%s", r.group, key, path)
}

func (r *Redis) orderKey() string {
	return fmt.Sprintf("parliament:%s:record:order", r.group)
}

// Record implements parliament.Recorder.
func (r *Redis) Record(ctx context.Context, w parliament.Write) (int64, error) {
	keys := []string{r.recordKey(w.Key, w.Path), r.orderKey()}
	order, err := recordScript.Run(ctx, r.rdb, keys, string(w.Value), string(w.Expect)).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to record %s%s: %w", w.Key, w.Path, err)
	}
	if order < 0 {
		return 0, fmt.Errorf("%w: %s%s changed since it was read", parliament.ErrStale, w.Key, w.Path)
	}
	return order, nil
}

// Load returns the recorded value and order token at (key, path).
func (r *Redis) Load(ctx context.Context, key parliament.Key, path string) (json.RawMessage, int64, error) {
	vals, err := r.rdb.HMGet(ctx, r.recordKey(key, path), "value", "order").Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load %s%s: %w", key, path, err)
	}
	value, ok := vals[0].(string)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s%s", ErrNotFound, key, path)
	}
	orderStr, _ := vals[1].(string)
	order, err := strconv.ParseInt(orderStr, 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid order for %s%s: %w", key, path, err)
	}
	return json.RawMessage(value), order, nil
}
