package gasrag

import (
	"context"
	"time"
)

// MigrationStats accumulates record outcomes across a migration run.
type MigrationStats struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// Checkpoint is the durable progress marker of a migration.
// LastProcessed is the number of input records already attempted.
type Checkpoint struct {
	LastProcessed int            `json:"lastProcessed"`
	Stats         MigrationStats `json:"stats"`
	Timestamp     time.Time      `json:"timestamp"`
}

// CheckpointStore persists a single migration checkpoint.
type CheckpointStore interface {
	// LoadCheckpoint returns ENOTFOUND if no checkpoint exists.
	LoadCheckpoint(ctx context.Context) (*Checkpoint, error)
	SaveCheckpoint(ctx context.Context, cp *Checkpoint) error
	DeleteCheckpoint(ctx context.Context) error
}
