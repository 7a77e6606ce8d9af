// Package vectorstore is the fault-tolerant client of the vector database.
//
// Every operation runs behind a circuit breaker and a retry policy, writes
// are validated and batched, and similarity searches are cached briefly.
package vectorstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/solracnyc/gasrag"
	"github.com/solracnyc/gasrag/breaker"
	"github.com/solracnyc/gasrag/retry"
)

// Config holds the tunable limits of a Client.
type Config struct {
	BatchSize  int           `yaml:"batch_size"`
	BatchDelay time.Duration `yaml:"batch_delay"`

	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Jitter      time.Duration `yaml:"jitter"`

	// Timeout bounds each remote call.
	Timeout time.Duration `yaml:"timeout"`

	CacheTTL  time.Duration `yaml:"cache_ttl"`
	CacheSize int           `yaml:"cache_size"`

	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerTimeout   time.Duration `yaml:"breaker_timeout"`

	// DegradedLatency is the health check round trip at or above which the
	// database is reported degraded.
	DegradedLatency time.Duration `yaml:"degraded_latency"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:        50,
		BatchDelay:       100 * time.Millisecond,
		MaxAttempts:      3,
		BaseDelay:        time.Second,
		MaxDelay:         10 * time.Second,
		Jitter:           time.Second,
		Timeout:          30 * time.Second,
		CacheTTL:         5 * time.Minute,
		CacheSize:        100,
		BreakerThreshold: 5,
		BreakerTimeout:   time.Minute,
		DegradedLatency:  time.Second,
	}
}

// Ensure Client implements gasrag.VectorStore at compile time.
var _ gasrag.VectorStore = (*Client)(nil)

// Client implements gasrag.VectorStore over a gasrag.VectorDatabase.
type Client struct {
	db      gasrag.VectorDatabase
	config  Config
	breaker *breaker.Breaker
	cache   *resultCache

	// Sleep waits between retries and write batches.
	Sleep func(ctx context.Context, d time.Duration) error

	// Now returns the current time.
	Now func() time.Time

	Logger *slog.Logger
}

// NewClient returns a Client over db.
func NewClient(db gasrag.VectorDatabase, cfg Config) *Client {
	c := &Client{
		db:     db,
		config: cfg,
		Sleep:  retry.Sleep,
		Now:    time.Now,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	c.breaker = breaker.New(breaker.Config{Threshold: cfg.BreakerThreshold, Timeout: cfg.BreakerTimeout})
	c.breaker.Now = func() time.Time { return c.Now() }
	c.cache = newResultCache(cfg.CacheSize, cfg.CacheTTL, func() time.Time { return c.Now() })
	return c
}

// Breaker returns the client's circuit breaker.
func (c *Client) Breaker() *breaker.Breaker { return c.breaker }

// CacheSize returns the number of cached search results.
func (c *Client) CacheSize() int { return c.cache.size() }

// policy returns the store retry policy.
func (c *Client) policy(op string) retry.Policy {
	return retry.Policy{
		MaxAttempts: c.config.MaxAttempts,
		BaseDelay:   c.config.BaseDelay,
		MaxDelay:    c.config.MaxDelay,
		Jitter:      c.config.Jitter,
		Retryable:   gasrag.IsRetryable,
		Sleep:       c.Sleep,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			c.Logger.Warn("vector store retry", "op", op, "attempt", attempt, "delay", delay, "err", err)
		},
	}
}

// do runs fn behind the breaker and the retry policy, bounding each
// attempt by the call timeout. Failures are returned as *gasrag.OpError.
func (c *Client) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return retry.Do(ctx, c.policy(op), func(ctx context.Context) error {
			if c.config.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
				defer cancel()
			}
			return fn(ctx)
		})
	})
	if err == nil {
		return nil
	}

	cause := err
	var ex *retry.ExhaustedError
	if errors.As(err, &ex) {
		cause = ex.Err
	}
	return &gasrag.OpError{Op: op, Retryable: gasrag.IsRetryable(cause), Err: err}
}

// Insert validates and upserts chunks in batches. If any chunk is invalid
// nothing is written.
func (c *Client) Insert(ctx context.Context, chunks []*gasrag.EmbeddedChunk) (*gasrag.WriteResult, error) {
	return c.write(ctx, "insert", chunks, false)
}

// Update rewrites chunks that must already carry a document ID.
func (c *Client) Update(ctx context.Context, chunks []*gasrag.EmbeddedChunk) (*gasrag.WriteResult, error) {
	return c.write(ctx, "update", chunks, true)
}

func (c *Client) write(ctx context.Context, op string, chunks []*gasrag.EmbeddedChunk, requireDocID bool) (*gasrag.WriteResult, error) {
	for i, ch := range chunks {
		if ch == nil {
			return nil, &gasrag.OpError{Op: op, Err: gasrag.Errorf(gasrag.EINVALID, "record %d: nil chunk", i)}
		}
		if requireDocID && ch.DocumentID == "" {
			return nil, &gasrag.OpError{Op: op, Err: gasrag.Errorf(gasrag.EINVALID, "record %d: document ID required for update", i)}
		}
		candidate := *ch
		candidate.AssignDocumentID()
		if err := candidate.Validate(); err != nil {
			return nil, &gasrag.OpError{Op: op, Err: gasrag.Errorf(gasrag.EINVALID, "record %d: %s", i, gasrag.ErrorMessage(err))}
		}
	}
	for _, ch := range chunks {
		ch.AssignDocumentID()
		if ch.VectorNorm == 0 {
			ch.VectorNorm = gasrag.L2Norm(ch.Embedding)
		}
	}

	batchSize := c.config.BatchSize
	if batchSize <= 0 {
		batchSize = len(chunks)
	}

	result := &gasrag.WriteResult{}
	defer func() {
		if result.Written > 0 {
			c.cache.invalidate()
		}
	}()

	for start := 0; start < len(chunks); start += batchSize {
		if start > 0 && c.config.BatchDelay > 0 {
			if err := c.Sleep(ctx, c.config.BatchDelay); err != nil {
				return result, &gasrag.OpError{Op: op, Err: err}
			}
		}
		batch := chunks[start:min(start+batchSize, len(chunks))]
		if err := c.do(ctx, op, func(ctx context.Context) error {
			return c.db.UpsertChunks(ctx, batch)
		}); err != nil {
			return result, err
		}
		result.Written += len(batch)
		result.Batches++
	}
	return result, nil
}

// Delete removes chunks by ID.
func (c *Client) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.do(ctx, "delete", func(ctx context.Context) error {
		return c.db.DeleteChunks(ctx, ids)
	}); err != nil {
		return err
	}
	c.cache.invalidate()
	return nil
}

// SimilaritySearch returns chunks similar to embedding. Repeated searches
// within the cache TTL are answered without a remote call.
func (c *Client) SimilaritySearch(ctx context.Context, embedding []float32, opts gasrag.SearchOptions) ([]gasrag.SearchResult, error) {
	if err := gasrag.ValidateEmbedding(embedding, gasrag.Dimension); err != nil {
		return nil, &gasrag.OpError{Op: "similarity_search", Err: err}
	}
	if opts.Count <= 0 {
		opts.Count = 10
	}

	key := searchKey(embedding, opts)
	if results, ok := c.cache.get(key); ok {
		return results, nil
	}

	var results []gasrag.SearchResult
	err := c.do(ctx, "similarity_search", func(ctx context.Context) error {
		var err error
		results, err = c.db.MatchDocuments(ctx, gasrag.MatchQuery{
			Embedding: embedding,
			Threshold: opts.Threshold,
			Count:     opts.Count,
			Filter:    opts.Filter,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	c.cache.put(key, results)
	return results, nil
}

// HybridSearch combines full-text and vector similarity. Weights default
// to 0.7 vector and 0.3 text.
func (c *Client) HybridSearch(ctx context.Context, text string, embedding []float32, opts gasrag.HybridOptions) ([]gasrag.SearchResult, error) {
	if err := gasrag.ValidateEmbedding(embedding, gasrag.Dimension); err != nil {
		return nil, &gasrag.OpError{Op: "hybrid_search", Err: err}
	}
	if opts.Count <= 0 {
		opts.Count = 10
	}
	if opts.VectorWeight == 0 && opts.TextWeight == 0 {
		opts.VectorWeight, opts.TextWeight = 0.7, 0.3
	}

	var results []gasrag.SearchResult
	err := c.do(ctx, "hybrid_search", func(ctx context.Context) error {
		var err error
		results, err = c.db.HybridSearch(ctx, gasrag.HybridQuery{
			Text:         text,
			Embedding:    embedding,
			Threshold:    opts.Threshold,
			Count:        opts.Count,
			VectorWeight: opts.VectorWeight,
			TextWeight:   opts.TextWeight,
		})
		return err
	})
	return results, err
}

// GetByDocumentID returns the chunks of a document ordered by index.
func (c *Client) GetByDocumentID(ctx context.Context, documentID string) ([]*gasrag.StoredChunk, error) {
	if documentID == "" {
		return nil, &gasrag.OpError{Op: "get_by_document", Err: gasrag.Errorf(gasrag.EINVALID, "document ID required")}
	}
	var chunks []*gasrag.StoredChunk
	err := c.do(ctx, "get_by_document", func(ctx context.Context) error {
		var err error
		chunks, err = c.db.ChunksByDocument(ctx, documentID)
		return err
	})
	return chunks, err
}

// Stats returns database statistics.
func (c *Client) Stats(ctx context.Context) (*gasrag.DatabaseStats, error) {
	var stats *gasrag.DatabaseStats
	err := c.do(ctx, "stats", func(ctx context.Context) error {
		var err error
		stats, err = c.db.DatabaseStats(ctx)
		return err
	})
	return stats, err
}

// HealthCheck times a minimal match query. It bypasses retries and the
// result cache but reports the breaker state.
func (c *Client) HealthCheck(ctx context.Context) gasrag.Health {
	sample := make([]float32, gasrag.Dimension)
	sample[0] = 1

	start := c.Now()
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		if c.config.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
			defer cancel()
		}
		_, err := c.db.MatchDocuments(ctx, gasrag.MatchQuery{Embedding: sample, Threshold: 0, Count: 1})
		return err
	})
	h := gasrag.Health{
		Latency:      c.Now().Sub(start),
		CircuitState: c.breaker.State().Phase.String(),
	}
	switch {
	case err != nil:
		h.Status = gasrag.HealthUnhealthy
		h.Error = err.Error()
	case h.Latency >= c.config.DegradedLatency:
		h.Status = gasrag.HealthDegraded
	default:
		h.Status = gasrag.HealthHealthy
	}
	return h
}
