package mock

import (
	"context"

	"github.com/solracnyc/gasrag"
)

var _ gasrag.CheckpointStore = (*CheckpointStore)(nil)

// CheckpointStore is a mock implementation of gasrag.CheckpointStore.
type CheckpointStore struct {
	LoadCheckpointFn   func(ctx context.Context) (*gasrag.Checkpoint, error)
	SaveCheckpointFn   func(ctx context.Context, cp *gasrag.Checkpoint) error
	DeleteCheckpointFn func(ctx context.Context) error
}

func (s *CheckpointStore) LoadCheckpoint(ctx context.Context) (*gasrag.Checkpoint, error) {
	return s.LoadCheckpointFn(ctx)
}

func (s *CheckpointStore) SaveCheckpoint(ctx context.Context, cp *gasrag.Checkpoint) error {
	return s.SaveCheckpointFn(ctx, cp)
}

func (s *CheckpointStore) DeleteCheckpoint(ctx context.Context) error {
	return s.DeleteCheckpointFn(ctx)
}

var _ gasrag.CacheSnapshotStore = (*CacheSnapshotStore)(nil)

// CacheSnapshotStore is a mock implementation of gasrag.CacheSnapshotStore.
type CacheSnapshotStore struct {
	SaveSnapshotFn func(ctx context.Context, snap *gasrag.CacheSnapshot) error
	LoadSnapshotFn func(ctx context.Context) (*gasrag.CacheSnapshot, error)
}

func (s *CacheSnapshotStore) SaveSnapshot(ctx context.Context, snap *gasrag.CacheSnapshot) error {
	return s.SaveSnapshotFn(ctx, snap)
}

func (s *CacheSnapshotStore) LoadSnapshot(ctx context.Context) (*gasrag.CacheSnapshot, error) {
	return s.LoadSnapshotFn(ctx)
}
