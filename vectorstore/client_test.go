package vectorstore_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/solracnyc/gasrag"
	"github.com/solracnyc/gasrag/breaker"
	"github.com/solracnyc/gasrag/mock"
	"github.com/solracnyc/gasrag/sqlite"
	"github.com/solracnyc/gasrag/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitVector(i int) []float32 {
	v := make([]float32, gasrag.Dimension)
	v[i%gasrag.Dimension] = 1
	return v
}

func records(n int) []*gasrag.EmbeddedChunk {
	out := make([]*gasrag.EmbeddedChunk, n)
	for i := range out {
		out[i] = &gasrag.EmbeddedChunk{
			Chunk: gasrag.Chunk{
				ID:         fmt.Sprintf("chunk-%d", i),
				Content:    fmt.Sprintf("chunk %d", i),
				SourceURL:  fmt.Sprintf("https://example.com/doc-%d", i/10),
				ChunkIndex: i % 10,
			},
			Embedding: unitVector(i),
		}
	}
	return out
}

// newClient returns a client whose waits return immediately and whose
// clock is frozen at a fixed instant unless the test moves it.
func newClient(db gasrag.VectorDatabase) (*vectorstore.Client, *time.Time, *[]time.Duration) {
	c := vectorstore.NewClient(db, vectorstore.DefaultConfig())
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var waits []time.Duration
	c.Sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	c.Now = func() time.Time { return now }
	return c, &now, &waits
}

func setupSQLite(t *testing.T) *sqlite.ChunkStore {
	t.Helper()
	db := sqlite.NewDB(":memory:")
	require.NoError(t, db.Open())
	t.Cleanup(func() { db.Close() })
	return sqlite.NewChunkStore(db)
}

func TestClient_Insert(t *testing.T) {
	t.Parallel()

	t.Run("inserting 25 records twice leaves 25 rows", func(t *testing.T) {
		t.Parallel()

		c, _, _ := newClient(setupSQLite(t))
		ctx := context.Background()

		before, err := c.Stats(ctx)
		require.NoError(t, err)

		res, err := c.Insert(ctx, records(25))
		require.NoError(t, err)
		assert.Equal(t, 25, res.Written)

		after, err := c.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, before.TotalChunks+25, after.TotalChunks)
		assert.Equal(t, 3, after.TotalDocuments)

		_, err = c.Insert(ctx, records(25))
		require.NoError(t, err)

		again, err := c.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, after.TotalChunks, again.TotalChunks)
	})

	t.Run("rejects batch containing a 5-dimension record", func(t *testing.T) {
		t.Parallel()

		calls := 0
		c, _, _ := newClient(&mock.VectorDatabase{
			UpsertChunksFn: func(context.Context, []*gasrag.EmbeddedChunk) error {
				calls++
				return nil
			},
		})
		recs := records(25)
		recs[12].Embedding = []float32{1, 2, 3, 4, 5}

		_, err := c.Insert(context.Background(), recs)

		require.Error(t, err)
		assert.Equal(t, gasrag.EINVALID, gasrag.ErrorCode(err))
		assert.Contains(t, gasrag.ErrorMessage(err), "record 12")
		assert.Zero(t, calls)
	})

	t.Run("leaves records untouched when validation fails", func(t *testing.T) {
		t.Parallel()

		c, _, _ := newClient(&mock.VectorDatabase{
			UpsertChunksFn: func(context.Context, []*gasrag.EmbeddedChunk) error {
				t.Fatal("nothing should be written")
				return nil
			},
		})
		recs := records(3)
		recs[2].Embedding = []float32{1, 2, 3}

		_, err := c.Insert(context.Background(), recs)

		assert.Equal(t, gasrag.EINVALID, gasrag.ErrorCode(err))
		for _, r := range recs[:2] {
			assert.Empty(t, r.DocumentID)
			assert.Zero(t, r.VectorNorm)
		}
	})

	t.Run("rejects whitespace-only content", func(t *testing.T) {
		t.Parallel()

		calls := 0
		c, _, _ := newClient(&mock.VectorDatabase{
			UpsertChunksFn: func(context.Context, []*gasrag.EmbeddedChunk) error {
				calls++
				return nil
			},
		})
		recs := records(2)
		recs[1].Content = " \n\t "

		_, err := c.Insert(context.Background(), recs)

		assert.Equal(t, gasrag.EINVALID, gasrag.ErrorCode(err))
		assert.Contains(t, gasrag.ErrorMessage(err), "record 1: chunk content required")
		assert.Zero(t, calls)
	})

	t.Run("writes in batches of 50 with delay between", func(t *testing.T) {
		t.Parallel()

		var sizes []int
		c, _, waits := newClient(&mock.VectorDatabase{
			UpsertChunksFn: func(_ context.Context, chunks []*gasrag.EmbeddedChunk) error {
				sizes = append(sizes, len(chunks))
				return nil
			},
		})

		res, err := c.Insert(context.Background(), records(120))

		require.NoError(t, err)
		assert.Equal(t, []int{50, 50, 20}, sizes)
		assert.Equal(t, 3, res.Batches)
		assert.Equal(t, []time.Duration{100 * time.Millisecond, 100 * time.Millisecond}, *waits)
	})

	t.Run("generates document ID from source URL", func(t *testing.T) {
		t.Parallel()

		var got []*gasrag.EmbeddedChunk
		c, _, _ := newClient(&mock.VectorDatabase{
			UpsertChunksFn: func(_ context.Context, chunks []*gasrag.EmbeddedChunk) error {
				got = chunks
				return nil
			},
		})

		_, err := c.Insert(context.Background(), records(1))

		require.NoError(t, err)
		assert.Equal(t, gasrag.DocumentIDFor("https://example.com/doc-0"), got[0].DocumentID)
		assert.InDelta(t, 1.0, got[0].VectorNorm, 1e-9)
	})

	t.Run("retries transient failures", func(t *testing.T) {
		t.Parallel()

		calls := 0
		c, _, waits := newClient(&mock.VectorDatabase{
			UpsertChunksFn: func(context.Context, []*gasrag.EmbeddedChunk) error {
				calls++
				if calls == 1 {
					return &gasrag.StatusError{StatusCode: 503, Message: "service unavailable"}
				}
				return nil
			},
		})

		_, err := c.Insert(context.Background(), records(3))

		require.NoError(t, err)
		assert.Equal(t, 2, calls)
		require.Len(t, *waits, 1)
		assert.GreaterOrEqual(t, (*waits)[0], time.Second)
	})

	t.Run("returns operation error without retrying fatal failures", func(t *testing.T) {
		t.Parallel()

		calls := 0
		c, _, _ := newClient(&mock.VectorDatabase{
			UpsertChunksFn: func(context.Context, []*gasrag.EmbeddedChunk) error {
				calls++
				return errors.New("duplicate key value violates unique constraint")
			},
		})

		_, err := c.Insert(context.Background(), records(1))

		var opErr *gasrag.OpError
		require.ErrorAs(t, err, &opErr)
		assert.Equal(t, "insert", opErr.Op)
		assert.False(t, opErr.Retryable)
		assert.Equal(t, 1, calls)
	})
}

func TestClient_Update(t *testing.T) {
	t.Parallel()

	c, _, _ := newClient(&mock.VectorDatabase{})
	recs := records(1)

	_, err := c.Update(context.Background(), recs)

	require.Error(t, err)
	assert.Equal(t, gasrag.EINVALID, gasrag.ErrorCode(err))
	assert.Contains(t, gasrag.ErrorMessage(err), "document ID required")
}

func TestClient_SimilaritySearch(t *testing.T) {
	t.Parallel()

	t.Run("second search within TTL makes no remote call", func(t *testing.T) {
		t.Parallel()

		calls := 0
		c, _, _ := newClient(&mock.VectorDatabase{
			MatchDocumentsFn: func(_ context.Context, q gasrag.MatchQuery) ([]gasrag.SearchResult, error) {
				calls++
				assert.Equal(t, 5, q.Count)
				return []gasrag.SearchResult{{ID: "a", Similarity: 0.9}}, nil
			},
		})
		opts := gasrag.SearchOptions{Threshold: 0.5, Count: 5}

		first, err := c.SimilaritySearch(context.Background(), unitVector(3), opts)
		require.NoError(t, err)
		second, err := c.SimilaritySearch(context.Background(), unitVector(3), opts)
		require.NoError(t, err)

		assert.Equal(t, 1, calls)
		assert.Equal(t, first, second)
	})

	t.Run("expired entry triggers remote call", func(t *testing.T) {
		t.Parallel()

		calls := 0
		c, now, _ := newClient(&mock.VectorDatabase{
			MatchDocumentsFn: func(context.Context, gasrag.MatchQuery) ([]gasrag.SearchResult, error) {
				calls++
				return nil, nil
			},
		})

		_, err := c.SimilaritySearch(context.Background(), unitVector(1), gasrag.SearchOptions{})
		require.NoError(t, err)
		*now = now.Add(5 * time.Minute)
		_, err = c.SimilaritySearch(context.Background(), unitVector(1), gasrag.SearchOptions{})
		require.NoError(t, err)

		assert.Equal(t, 2, calls)
	})

	t.Run("different options miss the cache", func(t *testing.T) {
		t.Parallel()

		calls := 0
		c, _, _ := newClient(&mock.VectorDatabase{
			MatchDocumentsFn: func(context.Context, gasrag.MatchQuery) ([]gasrag.SearchResult, error) {
				calls++
				return nil, nil
			},
		})

		_, _ = c.SimilaritySearch(context.Background(), unitVector(1), gasrag.SearchOptions{Count: 5})
		_, _ = c.SimilaritySearch(context.Background(), unitVector(1), gasrag.SearchOptions{Count: 6})
		_, _ = c.SimilaritySearch(context.Background(), unitVector(1), gasrag.SearchOptions{Count: 6, Filter: map[string]any{"chunk_type": "method"}})

		assert.Equal(t, 3, calls)
	})

	t.Run("writes invalidate the cache", func(t *testing.T) {
		t.Parallel()

		calls := 0
		c, _, _ := newClient(&mock.VectorDatabase{
			MatchDocumentsFn: func(context.Context, gasrag.MatchQuery) ([]gasrag.SearchResult, error) {
				calls++
				return nil, nil
			},
			UpsertChunksFn: func(context.Context, []*gasrag.EmbeddedChunk) error { return nil },
		})

		_, _ = c.SimilaritySearch(context.Background(), unitVector(1), gasrag.SearchOptions{})
		assert.Equal(t, 1, c.CacheSize())
		_, err := c.Insert(context.Background(), records(1))
		require.NoError(t, err)
		assert.Zero(t, c.CacheSize())
		_, _ = c.SimilaritySearch(context.Background(), unitVector(1), gasrag.SearchOptions{})

		assert.Equal(t, 2, calls)
	})

	t.Run("evicts oldest entry at capacity", func(t *testing.T) {
		t.Parallel()

		cfg := vectorstore.DefaultConfig()
		cfg.CacheSize = 2
		calls := 0
		c := vectorstore.NewClient(&mock.VectorDatabase{
			MatchDocumentsFn: func(context.Context, gasrag.MatchQuery) ([]gasrag.SearchResult, error) {
				calls++
				return nil, nil
			},
		}, cfg)

		for _, i := range []int{1, 2, 3, 1} {
			_, err := c.SimilaritySearch(context.Background(), unitVector(i), gasrag.SearchOptions{})
			require.NoError(t, err)
		}

		assert.Equal(t, 4, calls)
		assert.Equal(t, 2, c.CacheSize())
	})

	t.Run("rejects query of wrong dimension", func(t *testing.T) {
		t.Parallel()

		c, _, _ := newClient(&mock.VectorDatabase{})

		_, err := c.SimilaritySearch(context.Background(), []float32{1, 2}, gasrag.SearchOptions{})

		assert.Equal(t, gasrag.EINVALID, gasrag.ErrorCode(err))
	})
}

func TestClient_CircuitBreaker(t *testing.T) {
	t.Parallel()

	calls := 0
	c, now, _ := newClient(&mock.VectorDatabase{
		DatabaseStatsFn: func(context.Context) (*gasrag.DatabaseStats, error) {
			calls++
			if calls <= 5 {
				return nil, &gasrag.StatusError{StatusCode: 401, Message: "invalid api key"}
			}
			return &gasrag.DatabaseStats{TotalChunks: 7}, nil
		},
	})
	ctx := context.Background()

	for range 5 {
		_, err := c.Stats(ctx)
		require.Error(t, err)
	}
	assert.Equal(t, breaker.Open, c.Breaker().State().Phase)

	_, err := c.Stats(ctx)
	require.Error(t, err)
	assert.Equal(t, gasrag.EUNAVAILABLE, gasrag.ErrorCode(err))
	assert.Equal(t, 5, calls, "open circuit must not reach the database")

	*now = now.Add(time.Minute)
	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, stats.TotalChunks)
	assert.Equal(t, breaker.Closed, c.Breaker().State().Phase)
}

func TestClient_HealthCheck(t *testing.T) {
	t.Parallel()

	t.Run("healthy when fast", func(t *testing.T) {
		t.Parallel()

		c, _, _ := newClient(&mock.VectorDatabase{
			MatchDocumentsFn: func(context.Context, gasrag.MatchQuery) ([]gasrag.SearchResult, error) {
				return nil, nil
			},
		})

		h := c.HealthCheck(context.Background())

		assert.Equal(t, gasrag.HealthHealthy, h.Status)
		assert.Equal(t, "closed", h.CircuitState)
	})

	t.Run("degraded when slow", func(t *testing.T) {
		t.Parallel()

		var c *vectorstore.Client
		var now *time.Time
		c, now, _ = newClient(&mock.VectorDatabase{
			MatchDocumentsFn: func(context.Context, gasrag.MatchQuery) ([]gasrag.SearchResult, error) {
				*now = now.Add(1500 * time.Millisecond)
				return nil, nil
			},
		})

		h := c.HealthCheck(context.Background())

		assert.Equal(t, gasrag.HealthDegraded, h.Status)
		assert.Equal(t, 1500*time.Millisecond, h.Latency)
	})

	t.Run("unhealthy on error", func(t *testing.T) {
		t.Parallel()

		c, _, _ := newClient(&mock.VectorDatabase{
			MatchDocumentsFn: func(context.Context, gasrag.MatchQuery) ([]gasrag.SearchResult, error) {
				return nil, errors.New("connection refused")
			},
		})

		h := c.HealthCheck(context.Background())

		assert.Equal(t, gasrag.HealthUnhealthy, h.Status)
		assert.Contains(t, h.Error, "connection refused")
	})
}

func TestClient_GetByDocumentID(t *testing.T) {
	t.Parallel()

	c, _, _ := newClient(setupSQLite(t))
	ctx := context.Background()
	_, err := c.Insert(ctx, records(12))
	require.NoError(t, err)

	chunks, err := c.GetByDocumentID(ctx, gasrag.DocumentIDFor("https://example.com/doc-1"))

	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, 1, chunks[1].ChunkIndex)

	require.NoError(t, c.Delete(ctx, []string{"chunk-10"}))
	chunks, err = c.GetByDocumentID(ctx, gasrag.DocumentIDFor("https://example.com/doc-1"))
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}
