package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/solracnyc/gasrag"
)

// Ensure LoggingVectorDatabase implements gasrag.VectorDatabase.
var _ gasrag.VectorDatabase = (*LoggingVectorDatabase)(nil)

// LoggingVectorDatabase wraps a VectorDatabase with logging of every
// remote procedure call.
type LoggingVectorDatabase struct {
	next   gasrag.VectorDatabase
	logger *slog.Logger
}

// NewLoggingVectorDatabase creates a new LoggingVectorDatabase.
func NewLoggingVectorDatabase(next gasrag.VectorDatabase, logger *slog.Logger) *LoggingVectorDatabase {
	return &LoggingVectorDatabase{next: next, logger: logger}
}

func (db *LoggingVectorDatabase) log(ctx context.Context, op string, begin time.Time, err error, attrs ...any) {
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelWarn
	}
	attrs = append(attrs, "duration", time.Since(begin), "err", err)
	db.logger.Log(ctx, level, op, attrs...)
}

func (db *LoggingVectorDatabase) UpsertChunks(ctx context.Context, chunks []*gasrag.EmbeddedChunk) (err error) {
	defer func(begin time.Time) {
		db.log(ctx, "upsert chunks", begin, err, "count", len(chunks))
	}(time.Now())
	return db.next.UpsertChunks(ctx, chunks)
}

func (db *LoggingVectorDatabase) DeleteChunks(ctx context.Context, ids []string) (err error) {
	defer func(begin time.Time) {
		db.log(ctx, "delete chunks", begin, err, "count", len(ids))
	}(time.Now())
	return db.next.DeleteChunks(ctx, ids)
}

func (db *LoggingVectorDatabase) MatchDocuments(ctx context.Context, q gasrag.MatchQuery) (results []gasrag.SearchResult, err error) {
	defer func(begin time.Time) {
		db.log(ctx, "match documents", begin, err,
			"threshold", q.Threshold,
			"count", q.Count,
			"results", len(results),
		)
	}(time.Now())
	return db.next.MatchDocuments(ctx, q)
}

func (db *LoggingVectorDatabase) HybridSearch(ctx context.Context, q gasrag.HybridQuery) (results []gasrag.SearchResult, err error) {
	defer func(begin time.Time) {
		db.log(ctx, "hybrid search", begin, err,
			"query", q.Text,
			"count", q.Count,
			"results", len(results),
		)
	}(time.Now())
	return db.next.HybridSearch(ctx, q)
}

func (db *LoggingVectorDatabase) ChunksByDocument(ctx context.Context, documentID string) (chunks []*gasrag.StoredChunk, err error) {
	defer func(begin time.Time) {
		db.log(ctx, "chunks by document", begin, err,
			"document", documentID,
			"results", len(chunks),
		)
	}(time.Now())
	return db.next.ChunksByDocument(ctx, documentID)
}

func (db *LoggingVectorDatabase) DatabaseStats(ctx context.Context) (stats *gasrag.DatabaseStats, err error) {
	defer func(begin time.Time) {
		db.log(ctx, "database stats", begin, err)
	}(time.Now())
	return db.next.DatabaseStats(ctx)
}
