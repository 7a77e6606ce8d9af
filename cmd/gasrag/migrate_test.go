package main_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/solracnyc/gasrag"
	main "github.com/solracnyc/gasrag/cmd/gasrag"
	"github.com/solracnyc/gasrag/fs"
	"github.com/solracnyc/gasrag/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRecords(t *testing.T, n int) string {
	t.Helper()
	records := make([]map[string]any, n)
	for i := range records {
		records[i] = map[string]any{
			"content":     "Utilities.formatDate formats a date.",
			"url":         "https://developers.google.com/apps-script/reference/utilities/utilities",
			"chunk_index": i,
			"embedding":   unitVector(i),
		}
	}
	data, err := json.Marshal(records)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "records.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestMigrateCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("writes records and prints summary", func(t *testing.T) {
		t.Parallel()

		written := 0
		deps, stdout, _ := newDeps()
		deps.VectorDB = &mock.VectorDatabase{
			UpsertChunksFn: func(_ context.Context, chunks []*gasrag.EmbeddedChunk) error {
				written += len(chunks)
				return nil
			},
		}
		checkpoint := filepath.Join(t.TempDir(), "checkpoint.json")
		deps.Checkpoints = fs.NewCheckpointFile(checkpoint)

		err := (&main.MigrateCmd{Input: writeRecords(t, 12), BatchSize: 5}).Run(deps)

		require.NoError(t, err)
		assert.Equal(t, 12, written)
		assert.Contains(t, stdout.String(), "Migrated 12 records: 12 successful, 0 failed, 0 skipped")
		assert.NoFileExists(t, checkpoint)
	})

	t.Run("resumes from checkpoint", func(t *testing.T) {
		t.Parallel()

		written := 0
		deps, stdout, _ := newDeps()
		deps.VectorDB = &mock.VectorDatabase{
			UpsertChunksFn: func(_ context.Context, chunks []*gasrag.EmbeddedChunk) error {
				written += len(chunks)
				return nil
			},
		}
		cps := fs.NewCheckpointFile(filepath.Join(t.TempDir(), "checkpoint.json"))
		require.NoError(t, cps.SaveCheckpoint(context.Background(), &gasrag.Checkpoint{
			LastProcessed: 5,
			Stats:         gasrag.MigrationStats{Total: 12, Successful: 5},
		}))
		deps.Checkpoints = cps

		err := (&main.MigrateCmd{Input: writeRecords(t, 12), BatchSize: 5}).Run(deps)

		require.NoError(t, err)
		assert.Equal(t, 7, written)
		assert.Contains(t, stdout.String(), "Resumed from record 5")
	})

	t.Run("restart discards checkpoint", func(t *testing.T) {
		t.Parallel()

		written := 0
		deps, stdout, _ := newDeps()
		deps.VectorDB = &mock.VectorDatabase{
			UpsertChunksFn: func(_ context.Context, chunks []*gasrag.EmbeddedChunk) error {
				written += len(chunks)
				return nil
			},
		}
		cps := fs.NewCheckpointFile(filepath.Join(t.TempDir(), "checkpoint.json"))
		require.NoError(t, cps.SaveCheckpoint(context.Background(), &gasrag.Checkpoint{LastProcessed: 10}))
		deps.Checkpoints = cps

		err := (&main.MigrateCmd{Input: writeRecords(t, 12), Restart: true}).Run(deps)

		require.NoError(t, err)
		assert.Equal(t, 12, written)
		assert.NotContains(t, stdout.String(), "Resumed")
	})

	t.Run("lists skipped records", func(t *testing.T) {
		t.Parallel()

		deps, stdout, _ := newDeps()
		deps.VectorDB = &mock.VectorDatabase{
			UpsertChunksFn: func(context.Context, []*gasrag.EmbeddedChunk) error { return nil },
		}
		deps.Checkpoints = fs.NewCheckpointFile(filepath.Join(t.TempDir(), "checkpoint.json"))

		path := filepath.Join(t.TempDir(), "records.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"content": "no vector", "url": "https://example.com"}]`), 0o644))

		err := (&main.MigrateCmd{Input: path}).Run(deps)

		require.NoError(t, err)
		assert.Contains(t, stdout.String(), "0 successful, 0 failed, 1 skipped")
		assert.Contains(t, stdout.String(), "record 0: embedding required")
	})

	t.Run("bounds each write by the store timeout", func(t *testing.T) {
		t.Parallel()

		deps, stdout, _ := newDeps()
		deps.Config.Store.Timeout = 20 * time.Millisecond
		deps.Config.Migration.BaseDelay = time.Millisecond
		deps.VectorDB = &mock.VectorDatabase{
			UpsertChunksFn: func(ctx context.Context, _ []*gasrag.EmbeddedChunk) error {
				<-ctx.Done()
				return ctx.Err()
			},
		}
		checkpoint := filepath.Join(t.TempDir(), "checkpoint.json")
		deps.Checkpoints = fs.NewCheckpointFile(checkpoint)

		err := (&main.MigrateCmd{Input: writeRecords(t, 4)}).Run(deps)

		require.NoError(t, err)
		assert.Contains(t, stdout.String(), "0 successful, 4 failed")
		assert.Contains(t, stdout.String(), "deadline exceeded")
		assert.FileExists(t, checkpoint)
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		t.Parallel()

		deps, _, _ := newDeps()
		path := filepath.Join(t.TempDir(), "records.json")
		require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

		err := (&main.MigrateCmd{Input: path}).Run(deps)

		assert.Equal(t, gasrag.EINVALID, gasrag.ErrorCode(err))
	})
}
