// Package embed turns chunks into embedded chunks through a remote
// embedding service, under a shared request budget and per-item retry.
package embed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/solracnyc/gasrag"
	"github.com/solracnyc/gasrag/retry"
	"golang.org/x/time/rate"
)

// Config holds the tunable limits of a Pipeline.
type Config struct {
	// MaxChars is the character budget an input is truncated to.
	MaxChars int `yaml:"max_chars"`

	// MaxAttempts is the number of calls per item, including the first.
	MaxAttempts int `yaml:"max_attempts"`

	// BaseDelay seeds both backoff curves. Rate-limit errors double it per
	// attempt up to MaxDelay; other errors wait BaseDelay × attempt.
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`

	// BatchDelay is the pause between consecutive batches.
	BatchDelay time.Duration `yaml:"batch_delay"`

	// RequestsPerMinute bounds calls to the embedding service. Zero
	// disables the budget.
	RequestsPerMinute int `yaml:"requests_per_minute"`

	// Timeout bounds each remote call.
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		MaxChars:          8000,
		MaxAttempts:       3,
		BaseDelay:         time.Second,
		MaxDelay:          32 * time.Second,
		BatchDelay:        600 * time.Millisecond,
		RequestsPerMinute: 100,
		Timeout:           30 * time.Second,
	}
}

// BatchResult reports the outcome of embedding a batch. Failed items are
// dropped from Embedded and described in Failed.
type BatchResult struct {
	Embedded []*gasrag.EmbeddedChunk
	Failed   []*gasrag.EmbeddingFailure
}

// Pipeline embeds text and chunks.
type Pipeline struct {
	Service gasrag.EmbeddingService
	Config  Config

	// Limiter is the request budget, shared by every caller of the
	// pipeline.
	Limiter *rate.Limiter

	// Sleep waits between retries and batches. Tests record delays by
	// replacing it.
	Sleep func(ctx context.Context, d time.Duration) error

	// Now returns the current time.
	Now func() time.Time

	Logger *slog.Logger
}

// NewPipeline returns a Pipeline over svc configured by cfg.
func NewPipeline(svc gasrag.EmbeddingService, cfg Config) *Pipeline {
	p := &Pipeline{
		Service: svc,
		Config:  cfg,
		Sleep:   retry.Sleep,
		Now:     time.Now,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if cfg.RequestsPerMinute > 0 {
		p.Limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return p
}

// Policy returns the retry policy used for each embedding call.
func (p *Pipeline) Policy() retry.Policy {
	exp := retry.Exponential(p.Config.BaseDelay, p.Config.MaxDelay)
	lin := retry.Linear(p.Config.BaseDelay)
	return retry.Policy{
		MaxAttempts: p.Config.MaxAttempts,
		MaxDelay:    p.Config.MaxDelay,
		Retryable:   retryable,
		Backoff: func(attempt int, err error) time.Duration {
			if gasrag.IsRateLimit(err) {
				return exp(attempt, err)
			}
			return lin(attempt, err)
		},
		Sleep: p.Sleep,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			p.logger().Warn("embedding retry", "attempt", attempt, "delay", delay, "err", err)
		},
	}
}

// retryable retries every failure except caller cancellation and errors
// that a repeated call cannot fix.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if gasrag.IsRateLimit(err) {
		return true
	}
	switch gasrag.ErrorCode(err) {
	case gasrag.EINVALID, gasrag.EUNAUTHORIZED:
		return false
	}
	return true
}

// EmbedText embeds a single text. Input is truncated to the character
// budget. Exhausted retries return *gasrag.EmbeddingFailure.
func (p *Pipeline) EmbedText(ctx context.Context, text string, task gasrag.TaskType) ([]float32, error) {
	v, _, err := p.embed(ctx, text, task)
	return v, err
}

func (p *Pipeline) embed(ctx context.Context, text string, task gasrag.TaskType) ([]float32, int, error) {
	if text == "" {
		return nil, 0, gasrag.Errorf(gasrag.EINVALID, "text required")
	}
	text = Truncate(text, p.Config.MaxChars)

	attempts := 0
	v, err := retry.DoValue(ctx, p.Policy(), func(ctx context.Context) ([]float32, error) {
		attempts++
		if p.Limiter != nil {
			if err := p.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		if p.Config.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.Config.Timeout)
			defer cancel()
		}
		v, err := p.Service.Embed(ctx, text, task)
		if err != nil {
			return nil, err
		}
		if err := gasrag.ValidateEmbedding(v, gasrag.Dimension); err != nil {
			return nil, err
		}
		return v, nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, attempts, err
		}
		return nil, attempts, &gasrag.EmbeddingFailure{Attempts: attempts, Err: unwrapExhausted(err)}
	}
	return v, attempts, nil
}

func unwrapExhausted(err error) error {
	var ex *retry.ExhaustedError
	if errors.As(err, &ex) {
		return ex.Err
	}
	return err
}

// EmbedChunk embeds a chunk's content as a document and attaches the
// vector, its norm and the model name.
func (p *Pipeline) EmbedChunk(ctx context.Context, c *gasrag.Chunk) (*gasrag.EmbeddedChunk, error) {
	if c == nil {
		return nil, gasrag.Errorf(gasrag.EINVALID, "chunk required")
	}
	v, _, err := p.embed(ctx, c.Content, gasrag.TaskDocument)
	if err != nil {
		var f *gasrag.EmbeddingFailure
		if errors.As(err, &f) {
			f.ChunkID = c.ID
		}
		return nil, err
	}
	return &gasrag.EmbeddedChunk{
		Chunk:          *c,
		Embedding:      v,
		EmbeddingModel: p.Service.Model(),
		VectorNorm:     gasrag.L2Norm(v),
		CreatedAt:      p.Now().UTC(),
	}, nil
}

// EmbedBatch embeds chunks sequentially. A failed item does not stop the
// batch; cancellation does, returning the partial result with the error.
func (p *Pipeline) EmbedBatch(ctx context.Context, chunks []*gasrag.Chunk) (*BatchResult, error) {
	result := &BatchResult{Embedded: make([]*gasrag.EmbeddedChunk, 0, len(chunks))}
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		ec, err := p.EmbedChunk(ctx, c)
		if err != nil {
			var f *gasrag.EmbeddingFailure
			if !errors.As(err, &f) {
				if ctx.Err() != nil {
					return result, ctx.Err()
				}
				f = &gasrag.EmbeddingFailure{ChunkID: chunkID(c), Attempts: 1, Err: err}
			}
			p.logger().Warn("dropping chunk", "chunk", f.ChunkID, "attempts", f.Attempts, "err", f.Err)
			result.Failed = append(result.Failed, f)
			continue
		}
		result.Embedded = append(result.Embedded, ec)
	}
	return result, nil
}

// EmbedAll embeds chunks in batches of batchSize, pausing BatchDelay
// between batches. progress, if set, is called with the number of chunks
// processed after each batch.
func (p *Pipeline) EmbedAll(ctx context.Context, chunks []*gasrag.Chunk, batchSize int, progress func(done, total int)) (*BatchResult, error) {
	if batchSize <= 0 {
		batchSize = len(chunks)
	}
	total := &BatchResult{Embedded: make([]*gasrag.EmbeddedChunk, 0, len(chunks))}
	for start := 0; start < len(chunks); start += batchSize {
		if start > 0 && p.Config.BatchDelay > 0 {
			if err := p.Sleep(ctx, p.Config.BatchDelay); err != nil {
				return total, err
			}
		}
		end := min(start+batchSize, len(chunks))

		res, err := p.EmbedBatch(ctx, chunks[start:end])
		total.Embedded = append(total.Embedded, res.Embedded...)
		total.Failed = append(total.Failed, res.Failed...)
		if err != nil {
			return total, err
		}
		if progress != nil {
			progress(end, len(chunks))
		}
	}
	return total, nil
}

// Truncate shortens text to at most maxChars bytes without splitting a
// UTF-8 sequence. maxChars <= 0 disables truncation.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p.Logger
}

func chunkID(c *gasrag.Chunk) string {
	if c == nil {
		return ""
	}
	return c.ID
}
