// Package bolt persists migration checkpoints and semantic cache snapshots
// in a single bbolt file.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/solracnyc/gasrag"
	"go.etcd.io/bbolt"
)

var (
	bucketCheckpoints = []byte("checkpoints")
	bucketSnapshots   = []byte("snapshots")
)

// DB wraps a bbolt database holding durable job state.
type DB struct {
	db *bbolt.DB

	// Path is the database file.
	Path string
}

// NewDB returns a new DB for path. Call Open before use.
func NewDB(path string) *DB {
	return &DB{Path: path}
}

// Open opens the database file and creates the buckets.
func (db *DB) Open() (err error) {
	if db.Path == "" {
		return gasrag.Errorf(gasrag.EINVALID, "bolt path required")
	}
	if db.db, err = bbolt.Open(db.Path, 0o600, &bbolt.Options{Timeout: time.Second}); err != nil {
		return fmt.Errorf("open bolt db: %w", err)
	}

	err = db.db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketCheckpoints, bucketSnapshots} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.db.Close()
		return err
	}
	return nil
}

// Close closes the database.
func (db *DB) Close() error {
	if db.db != nil {
		return db.db.Close()
	}
	return nil
}

func (db *DB) put(ctx context.Context, bucket []byte, key string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return db.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

func (db *DB) get(ctx context.Context, bucket []byte, key string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(key))
		if data == nil {
			return gasrag.Errorf(gasrag.ENOTFOUND, "%s not found: %s", bucket, key)
		}
		return json.Unmarshal(data, v)
	})
}

func (db *DB) delete(ctx context.Context, bucket []byte, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(key))
	})
}

// Ensure service implements interface.
var _ gasrag.CheckpointStore = (*CheckpointStore)(nil)

// CheckpointStore keeps one checkpoint per migration name.
type CheckpointStore struct {
	db   *DB
	name string
}

// NewCheckpointStore returns a CheckpointStore for the named migration.
func NewCheckpointStore(db *DB, name string) *CheckpointStore {
	return &CheckpointStore{db: db, name: name}
}

// LoadCheckpoint returns the stored checkpoint or ENOTFOUND.
func (s *CheckpointStore) LoadCheckpoint(ctx context.Context) (*gasrag.Checkpoint, error) {
	var cp gasrag.Checkpoint
	if err := s.db.get(ctx, bucketCheckpoints, s.name, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

// SaveCheckpoint replaces the stored checkpoint.
func (s *CheckpointStore) SaveCheckpoint(ctx context.Context, cp *gasrag.Checkpoint) error {
	return s.db.put(ctx, bucketCheckpoints, s.name, cp)
}

// DeleteCheckpoint removes the stored checkpoint. Deleting a missing
// checkpoint is not an error.
func (s *CheckpointStore) DeleteCheckpoint(ctx context.Context) error {
	return s.db.delete(ctx, bucketCheckpoints, s.name)
}

var _ gasrag.CacheSnapshotStore = (*SnapshotStore)(nil)

// SnapshotStore keeps one semantic cache snapshot per cache name.
type SnapshotStore struct {
	db   *DB
	name string
}

// NewSnapshotStore returns a SnapshotStore for the named cache.
func NewSnapshotStore(db *DB, name string) *SnapshotStore {
	return &SnapshotStore{db: db, name: name}
}

// SaveSnapshot replaces the stored snapshot.
func (s *SnapshotStore) SaveSnapshot(ctx context.Context, snap *gasrag.CacheSnapshot) error {
	return s.db.put(ctx, bucketSnapshots, s.name, snap)
}

// LoadSnapshot returns the stored snapshot or ENOTFOUND.
func (s *SnapshotStore) LoadSnapshot(ctx context.Context) (*gasrag.CacheSnapshot, error) {
	var snap gasrag.CacheSnapshot
	if err := s.db.get(ctx, bucketSnapshots, s.name, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
