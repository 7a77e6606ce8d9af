package main_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/solracnyc/gasrag"
	main "github.com/solracnyc/gasrag/cmd/gasrag"
	"github.com/solracnyc/gasrag/embed"
	"github.com/solracnyc/gasrag/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePages(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pages.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newPipeline(svc gasrag.EmbeddingService) *embed.Pipeline {
	cfg := embed.DefaultConfig()
	cfg.RequestsPerMinute = 0
	cfg.BatchDelay = 0
	p := embed.NewPipeline(svc, cfg)
	p.Sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

// pageChunker returns one page-specific chunk plus a shared footer chunk.
func pageChunker() *mock.Chunker {
	return &mock.Chunker{
		ChunkFn: func(_ context.Context, page *gasrag.Page) ([]*gasrag.Chunk, error) {
			if page.URL == "" {
				return nil, gasrag.Errorf(gasrag.EINVALID, "page URL required")
			}
			return []*gasrag.Chunk{
				{ID: page.URL + "#0", SourceURL: page.URL, Content: "Reference for " + page.URL, ChunkIndex: 0},
				{ID: page.URL + "#1", SourceURL: page.URL, Content: "Except as otherwise noted, content is licensed.", ChunkIndex: 1},
			}, nil
		},
	}
}

func TestIngestCmd_Run(t *testing.T) {
	t.Parallel()

	pages := `[
		{"url": "https://example.com/a", "markdown": "# A"},
		{"url": "https://example.com/b", "markdown": "# B"},
		{"url": "https://example.com/c", "markdown": "# C"},
		{"markdown": "# orphan"}
	]`

	t.Run("chunks embeds dedups and stores pages", func(t *testing.T) {
		t.Parallel()

		var (
			mu     sync.Mutex
			stored []*gasrag.EmbeddedChunk
		)
		deps, stdout, _ := newDeps()
		deps.Chunker = pageChunker()
		deps.Embedder = newPipeline(&mock.EmbeddingService{
			EmbedFn: func(_ context.Context, text string, task gasrag.TaskType) ([]float32, error) {
				assert.Equal(t, gasrag.TaskDocument, task)
				return unitVector(len(text)), nil
			},
		})
		deps.Store = &mock.VectorStore{
			InsertFn: func(_ context.Context, chunks []*gasrag.EmbeddedChunk) (*gasrag.WriteResult, error) {
				mu.Lock()
				defer mu.Unlock()
				stored = append(stored, chunks...)
				return &gasrag.WriteResult{Written: len(chunks), Batches: 1}, nil
			},
		}

		cmd := &main.IngestCmd{Path: writePages(t, pages), Concurrency: 2}
		err := cmd.Run(deps)

		require.NoError(t, err)
		assert.Len(t, stored, 4, "three page chunks plus one footer")
		assert.Contains(t, stdout.String(), "Ingested 4 pages (1 skipped): 6 chunks, 2 duplicates, 0 failed, 4 written")
	})

	t.Run("keeps duplicates when dedup disabled", func(t *testing.T) {
		t.Parallel()

		var written int
		var mu sync.Mutex
		deps, _, _ := newDeps()
		deps.Chunker = pageChunker()
		deps.Embedder = newPipeline(&mock.EmbeddingService{
			EmbedFn: func(context.Context, string, gasrag.TaskType) ([]float32, error) { return unitVector(0), nil },
		})
		deps.Store = &mock.VectorStore{
			InsertFn: func(_ context.Context, chunks []*gasrag.EmbeddedChunk) (*gasrag.WriteResult, error) {
				mu.Lock()
				written += len(chunks)
				mu.Unlock()
				return &gasrag.WriteResult{Written: len(chunks)}, nil
			},
		}

		err := (&main.IngestCmd{Path: writePages(t, pages), NoDedup: true}).Run(deps)

		require.NoError(t, err)
		assert.Equal(t, 6, written)
	})

	t.Run("drops chunks whose embedding fails", func(t *testing.T) {
		t.Parallel()

		deps, stdout, _ := newDeps()
		deps.Chunker = pageChunker()
		deps.Embedder = newPipeline(&mock.EmbeddingService{
			EmbedFn: func(_ context.Context, text string, _ gasrag.TaskType) ([]float32, error) {
				if text == "Reference for https://example.com/b" {
					return nil, gasrag.Errorf(gasrag.EINVALID, "content blocked")
				}
				return unitVector(1), nil
			},
		})
		deps.Store = &mock.VectorStore{
			InsertFn: func(_ context.Context, chunks []*gasrag.EmbeddedChunk) (*gasrag.WriteResult, error) {
				return &gasrag.WriteResult{Written: len(chunks)}, nil
			},
		}

		err := (&main.IngestCmd{Path: writePages(t, pages), Concurrency: 1}).Run(deps)

		require.NoError(t, err)
		assert.Contains(t, stdout.String(), "1 failed, 3 written")
	})

	t.Run("stops on store failure", func(t *testing.T) {
		t.Parallel()

		deps, _, stderr := newDeps()
		deps.Chunker = pageChunker()
		deps.Embedder = newPipeline(&mock.EmbeddingService{
			EmbedFn: func(context.Context, string, gasrag.TaskType) ([]float32, error) { return unitVector(0), nil },
		})
		deps.Store = &mock.VectorStore{
			InsertFn: func(context.Context, []*gasrag.EmbeddedChunk) (*gasrag.WriteResult, error) {
				return nil, &gasrag.OpError{Op: "insert", Err: gasrag.Errorf(gasrag.EUNAVAILABLE, "circuit breaker is open: service unavailable")}
			},
		}

		err := (&main.IngestCmd{Path: writePages(t, pages), Concurrency: 1}).Run(deps)

		var opErr *gasrag.OpError
		require.True(t, errors.As(err, &opErr))
		assert.Contains(t, stderr.String(), "vector store insert failed: circuit breaker is open")
	})

	t.Run("rejects empty input", func(t *testing.T) {
		t.Parallel()

		deps, _, _ := newDeps()

		err := (&main.IngestCmd{Path: writePages(t, `[]`)}).Run(deps)

		assert.Equal(t, gasrag.EINVALID, gasrag.ErrorCode(err))
	})
}
