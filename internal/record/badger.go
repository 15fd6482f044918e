// Package record implements the system of record that path-aware hooks write
// through: a compare-and-set store that assigns every landed write an
// increasing order token.
package record

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dyluth/parliament/pkg/parliament"
)

// ErrNotFound is returned by Load when nothing was ever recorded at a path.
var ErrNotFound = errors.New("record not found")

// entry is the stored form of one recorded field.
type entry struct {
	Value json.RawMessage `json:"value"`
	Order int64           `json:"order"`
}

// BadgerConfig holds configuration for an embedded record store.
type BadgerConfig struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence). Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool
}

// Badger is an embedded system of record for a single host. Peers that share
// it must live in the same process; use Redis for a shared deployment.
type Badger struct {
	db  *badger.DB
	seq *badger.Sequence
}

// OpenBadger opens (or creates) the record store described by cfg.
func OpenBadger(cfg BadgerConfig) (*Badger, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent record store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create record directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	seq, err := db.GetSequence([]byte("parliament/order"), 64)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("lease order sequence: %w", err)
	}
	return &Badger{db: db, seq: seq}, nil
}

// Close releases the order sequence and closes the database.
func (b *Badger) Close() error {
	return errors.Join(b.seq.Release(), b.db.Close())
}

func recordKey(key parliament.Key, path string) []byte {
	return []byte("record/" + key.String() + path)
}

// Record implements parliament.Recorder. The write lands only if nothing is
// stored at (w.Key, w.Path) or the stored value equals w.Expect; the order
// token it receives is greater than the one it replaces.
func (b *Badger) Record(ctx context.Context, w parliament.Write) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	k := recordKey(w.Key, w.Path)
	var order int64
	err := b.db.Update(func(txn *badger.Txn) error {
		var prev int64
		item, err := txn.Get(k)
		switch {
		case err == nil:
			var cur entry
			if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &cur) }); err != nil {
				return fmt.Errorf("decode record %s: %w", k, err)
			}
			if !bytes.Equal(cur.Value, w.Expect) {
				return fmt.Errorf("%w: %s%s is %s, expected %s", parliament.ErrStale, w.Key, w.Path, cur.Value, w.Expect)
			}
			prev = cur.Order
		case errors.Is(err, badger.ErrKeyNotFound):
		default:
			return err
		}

		next, err := b.seq.Next()
		if err != nil {
			return fmt.Errorf("next order token: %w", err)
		}
		order = max(int64(next)+1, prev+1)

		raw, err := json.Marshal(entry{Value: w.Value, Order: order})
		if err != nil {
			return err
		}
		return txn.Set(k, raw)
	})
	if errors.Is(err, badger.ErrConflict) {
		return 0, fmt.Errorf("%w: concurrent write to %s%s", parliament.ErrStale, w.Key, w.Path)
	}
	if err != nil {
		return 0, err
	}
	return order, nil
}

// Load returns the recorded value and order token at (key, path).
func (b *Badger) Load(ctx context.Context, key parliament.Key, path string) (json.RawMessage, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	var cur entry
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(key, path))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error { return json.Unmarshal(v, &cur) })
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, 0, fmt.Errorf("%w: %s%s", ErrNotFound, key, path)
	}
	if err != nil {
		return nil, 0, err
	}
	return cur.Value, cur.Order, nil
}
