// Package migrate copies externally produced chunk records into the vector
// store as a resumable job. Progress is checkpointed after every batch
// so an interrupted run continues where it stopped.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/solracnyc/gasrag"
	"github.com/solracnyc/gasrag/retry"
)

// Config holds the tunable limits of a Coordinator.
type Config struct {
	BatchSize   int           `yaml:"batch_size"`
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`

	// MaxReportedErrors bounds Report.Errors.
	MaxReportedErrors int `yaml:"max_reported_errors"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:         50,
		MaxAttempts:       3,
		BaseDelay:         time.Second,
		MaxReportedErrors: 10,
	}
}

// Report summarizes a migration run.
type Report struct {
	gasrag.MigrationStats
	Duration time.Duration `json:"duration"`

	// ResumedFrom is the number of records skipped over because an earlier
	// run already attempted them.
	ResumedFrom int `json:"resumedFrom"`

	// Errors holds the first errors encountered, in order.
	Errors []string `json:"errors,omitempty"`
}

// Coordinator runs migrations.
type Coordinator struct {
	// Writer receives each batch. It is expected to bound every call with
	// a timeout and to fail fast while its circuit is open.
	Writer      gasrag.ChunkWriter
	Checkpoints gasrag.CheckpointStore
	Config      Config

	// Sleep waits between batch retries.
	Sleep func(ctx context.Context, d time.Duration) error

	// Now returns the current time.
	Now func() time.Time

	// Progress, if set, is called after each batch with the number of
	// records attempted so far.
	Progress func(done, total int)

	Logger *slog.Logger
}

// NewCoordinator returns a Coordinator writing to w and checkpointing to
// checkpoints.
func NewCoordinator(w gasrag.ChunkWriter, checkpoints gasrag.CheckpointStore, cfg Config) *Coordinator {
	return &Coordinator{
		Writer:      w,
		Checkpoints: checkpoints,
		Config:      cfg,
		Sleep:       retry.Sleep,
		Now:         time.Now,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Policy returns the retry policy applied to each batch: exponential
// backoff of 1s, 2s, 4s... from BaseDelay.
func (c *Coordinator) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.Config.MaxAttempts,
		Retryable: func(err error) bool {
			return !errors.Is(err, context.Canceled) && gasrag.ErrorCode(err) != gasrag.EINVALID
		},
		Backoff:     retry.Exponential(c.Config.BaseDelay, 0),
		Sleep:       c.Sleep,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			c.Logger.Warn("migration batch retry", "attempt", attempt, "delay", delay, "err", err)
		},
	}
}

// Run migrates records, resuming from the stored checkpoint if one exists.
// Invalid records are skipped and failed batches are recorded without
// stopping the run. A batch interrupted by cancellation is neither counted
// nor checkpointed, so a resumed run attempts it again.
func (c *Coordinator) Run(ctx context.Context, records []gasrag.RawRecord) (*Report, error) {
	start := c.Now()
	report := &Report{}
	report.Total = len(records)

	cp, err := c.Checkpoints.LoadCheckpoint(ctx)
	switch {
	case gasrag.ErrorCode(err) == gasrag.ENOTFOUND:
	case err != nil:
		return nil, fmt.Errorf("load checkpoint: %w", err)
	default:
		if cp.LastProcessed > len(records) {
			return nil, gasrag.Errorf(gasrag.ECONFLICT, "checkpoint is at record %d but input has %d records", cp.LastProcessed, len(records))
		}
		report.ResumedFrom = cp.LastProcessed
		report.Successful = cp.Stats.Successful
		report.Failed = cp.Stats.Failed
		report.Skipped = cp.Stats.Skipped
		c.Logger.Info("resuming migration", "from", cp.LastProcessed, "total", len(records))
	}

	batchSize := c.Config.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	for offset := report.ResumedFrom; offset < len(records); offset += batchSize {
		if err := ctx.Err(); err != nil {
			report.Duration = c.Now().Sub(start)
			return report, err
		}
		end := min(offset+batchSize, len(records))

		var (
			batch   = make([]*gasrag.EmbeddedChunk, 0, end-offset)
			skipped []string
		)
		for i := offset; i < end; i++ {
			chunk, err := gasrag.NormalizeRecord(records[i], i)
			if err != nil {
				skipped = append(skipped, gasrag.ErrorMessage(err))
				continue
			}
			batch = append(batch, chunk)
		}

		var writeErr error
		if len(batch) > 0 {
			writeErr = retry.Do(ctx, c.Policy(), func(ctx context.Context) error {
				_, err := c.Writer.Insert(ctx, batch)
				return err
			})
			if writeErr != nil && ctx.Err() != nil {
				c.Logger.Info("migration interrupted", "from", offset, "to", end-1)
				report.Duration = c.Now().Sub(start)
				return report, ctx.Err()
			}
		}

		report.Skipped += len(skipped)
		for _, msg := range skipped {
			c.addError(report, msg)
			c.Logger.Warn("skipping record", "err", msg)
		}
		switch {
		case len(batch) == 0:
		case writeErr != nil:
			report.Failed += len(batch)
			c.addError(report, fmt.Sprintf("records %d-%d: %v", offset, end-1, writeErr))
			c.Logger.Error("batch failed", "from", offset, "to", end-1, "err", writeErr)
		default:
			report.Successful += len(batch)
		}

		if err := c.Checkpoints.SaveCheckpoint(ctx, &gasrag.Checkpoint{
			LastProcessed: end,
			Stats:         report.MigrationStats,
			Timestamp:     c.Now().UTC(),
		}); err != nil {
			c.Logger.Warn("failed to save checkpoint", "err", err)
		}
		if c.Progress != nil {
			c.Progress(end, len(records))
		}
	}

	if report.Successful == report.Total {
		if err := c.Checkpoints.DeleteCheckpoint(ctx); err != nil {
			c.Logger.Warn("failed to delete checkpoint", "err", err)
		}
	}

	report.Duration = c.Now().Sub(start)
	c.Logger.Info("migration finished",
		"total", report.Total,
		"successful", report.Successful,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"duration", report.Duration)
	return report, nil
}

func (c *Coordinator) addError(report *Report, msg string) {
	if len(report.Errors) < c.Config.MaxReportedErrors {
		report.Errors = append(report.Errors, msg)
	}
}
