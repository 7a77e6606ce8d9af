package main

import (
	"fmt"
	"time"

	"github.com/solracnyc/gasrag"
	"github.com/solracnyc/gasrag/fs"
	"github.com/solracnyc/gasrag/migrate"
	"github.com/solracnyc/gasrag/vectorstore"
)

// Run executes the migrate command. Records are written through a store
// client with per-call timeouts and a circuit breaker; progress is
// checkpointed so an interrupted run resumes.
func (c *MigrateCmd) Run(deps *Dependencies) error {
	records, err := fs.ReadRecords(c.Input)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", gasrag.ErrorMessage(err))
		return err
	}

	if c.Restart {
		if err := deps.Checkpoints.DeleteCheckpoint(deps.Ctx); err != nil {
			return fmt.Errorf("discard checkpoint: %w", err)
		}
	}

	cfg := deps.Config.Migration
	if c.BatchSize > 0 {
		cfg.BatchSize = c.BatchSize
	}
	// The coordinator owns batch retries, so the client makes one attempt.
	storeCfg := deps.Config.Store
	storeCfg.MaxAttempts = 1
	storeCfg.BatchSize = cfg.BatchSize
	writer := vectorstore.NewClient(deps.VectorDB, storeCfg)
	writer.Logger = deps.Logger

	coord := migrate.NewCoordinator(writer, deps.Checkpoints, cfg)
	coord.Logger = deps.Logger
	bar := newProgressBar(deps, len(records), "Migrating")
	coord.Progress = progressTo(bar)

	report, err := coord.Run(deps.Ctx, records)
	if report != nil {
		fmt.Fprintf(deps.Stdout, "Migrated %d records: %d successful, %d failed, %d skipped in %s\n",
			report.Total, report.Successful, report.Failed, report.Skipped, report.Duration.Round(time.Millisecond))
		if report.ResumedFrom > 0 {
			fmt.Fprintf(deps.Stdout, "Resumed from record %d\n", report.ResumedFrom)
		}
		for _, msg := range report.Errors {
			fmt.Fprintf(deps.Stdout, "  %s\n", msg)
		}
	}
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", gasrag.ErrorMessage(err))
		return err
	}
	return nil
}
