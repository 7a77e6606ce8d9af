// Package slog wraps remote services with structured logging.
package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/solracnyc/gasrag"
)

// Ensure LoggingEmbedder implements gasrag.EmbeddingService.
var _ gasrag.EmbeddingService = (*LoggingEmbedder)(nil)

// LoggingEmbedder wraps an EmbeddingService with debug logging.
type LoggingEmbedder struct {
	next   gasrag.EmbeddingService
	logger *slog.Logger
}

// NewLoggingEmbedder creates a new LoggingEmbedder.
func NewLoggingEmbedder(next gasrag.EmbeddingService, logger *slog.Logger) *LoggingEmbedder {
	return &LoggingEmbedder{next: next, logger: logger}
}

// Embed delegates to the wrapped service and logs the call.
func (e *LoggingEmbedder) Embed(ctx context.Context, text string, task gasrag.TaskType) (vec []float32, err error) {
	defer func(begin time.Time) {
		level := slog.LevelDebug
		if err != nil {
			level = slog.LevelWarn
		}
		e.logger.Log(ctx, level, "embed",
			"model", e.next.Model(),
			"task", string(task),
			"chars", len(text),
			"dims", len(vec),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return e.next.Embed(ctx, text, task)
}

// Model delegates to the wrapped service.
func (e *LoggingEmbedder) Model() string {
	return e.next.Model()
}
