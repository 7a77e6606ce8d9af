package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	"github.com/solracnyc/gasrag"
)

// Compile-time interface verification.
var _ gasrag.VectorDatabase = (*ChunkStore)(nil)

// ChunkStore implements gasrag.VectorDatabase using Postgres.
type ChunkStore struct {
	db *DB
}

// NewChunkStore creates a new ChunkStore.
func NewChunkStore(db *DB) *ChunkStore {
	return &ChunkStore{db: db}
}

const upsertChunk = `
	INSERT INTO gas_chunks (id, document_id, chunk_index, content, embedding, vector_norm, tokens, metadata, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()), now())
	ON CONFLICT (document_id, chunk_index) DO UPDATE SET
		id = excluded.id,
		content = excluded.content,
		embedding = excluded.embedding,
		vector_norm = excluded.vector_norm,
		tokens = excluded.tokens,
		metadata = excluded.metadata,
		updated_at = now()`

// UpsertChunks writes chunks in one transaction, replacing rows with the
// same (document_id, chunk_index).
func (s *ChunkStore) UpsertChunks(ctx context.Context, chunks []*gasrag.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range chunks {
		if err := c.Validate(); err != nil {
			return err
		}
		var createdAt *time.Time
		if !c.CreatedAt.IsZero() {
			createdAt = &c.CreatedAt
		}
		batch.Queue(upsertChunk,
			c.ID, c.DocumentID, c.ChunkIndex, c.Content,
			pgvector.NewVector(c.Embedding), c.VectorNorm, c.TokenEstimate,
			c.RecordMetadata(), createdAt,
		)
	}

	return pgx.BeginFunc(ctx, s.db.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
}

// DeleteChunks removes rows by ID.
func (s *ChunkStore) DeleteChunks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.pool.Exec(ctx, `DELETE FROM gas_chunks WHERE id = ANY($1)`, ids)
	return err
}

// MatchDocuments calls match_documents.
func (s *ChunkStore) MatchDocuments(ctx context.Context, q gasrag.MatchQuery) ([]gasrag.SearchResult, error) {
	if err := gasrag.ValidateEmbedding(q.Embedding, gasrag.Dimension); err != nil {
		return nil, err
	}
	filter := q.Filter
	if filter == nil {
		filter = map[string]any{}
	}
	rows, err := s.db.pool.Query(ctx, `
		SELECT id, document_id, chunk_index, content, similarity, metadata
		FROM match_documents($1, $2, $3, $4)
	`, pgvector.NewVector(q.Embedding), q.Threshold, q.Count, filter)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (gasrag.SearchResult, error) {
		var r gasrag.SearchResult
		err := row.Scan(&r.ID, &r.DocumentID, &r.ChunkIndex, &r.Content, &r.Similarity, &r.Metadata)
		return r, err
	})
}

// HybridSearch calls hybrid_search.
func (s *ChunkStore) HybridSearch(ctx context.Context, q gasrag.HybridQuery) ([]gasrag.SearchResult, error) {
	if err := gasrag.ValidateEmbedding(q.Embedding, gasrag.Dimension); err != nil {
		return nil, err
	}
	rows, err := s.db.pool.Query(ctx, `
		SELECT id, document_id, chunk_index, content, similarity, combined_score, metadata
		FROM hybrid_search($1, $2, $3, $4, $5, $6)
	`, q.Text, pgvector.NewVector(q.Embedding), q.Threshold, q.Count, q.VectorWeight, q.TextWeight)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (gasrag.SearchResult, error) {
		var r gasrag.SearchResult
		err := row.Scan(&r.ID, &r.DocumentID, &r.ChunkIndex, &r.Content, &r.Similarity, &r.CombinedScore, &r.Metadata)
		return r, err
	})
}

// ChunksByDocument returns a document's rows ordered by chunk index.
func (s *ChunkStore) ChunksByDocument(ctx context.Context, documentID string) ([]*gasrag.StoredChunk, error) {
	rows, err := s.db.pool.Query(ctx, `
		SELECT id, document_id, chunk_index, content, embedding, metadata, created_at
		FROM gas_chunks
		WHERE document_id = $1
		ORDER BY chunk_index
	`, documentID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*gasrag.StoredChunk, error) {
		var (
			c   gasrag.StoredChunk
			vec pgvector.Vector
		)
		if err := row.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Content, &vec, &c.Metadata, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Embedding = vec.Slice()
		return &c, nil
	})
}

// DatabaseStats calls get_database_stats.
func (s *ChunkStore) DatabaseStats(ctx context.Context) (*gasrag.DatabaseStats, error) {
	var (
		stats          gasrag.DatabaseStats
		docs, chunks   int64
		oldest, newest *time.Time
	)
	err := s.db.pool.QueryRow(ctx, `
		SELECT total_documents, total_chunks, avg_chunk_tokens, storage_size, oldest_chunk, newest_chunk
		FROM get_database_stats()
	`).Scan(&docs, &chunks, &stats.AvgChunkTokens, &stats.StorageSize, &oldest, &newest)
	if err != nil {
		return nil, err
	}
	stats.TotalDocuments = int(docs)
	stats.TotalChunks = int(chunks)
	stats.OldestChunk = oldest
	stats.NewestChunk = newest
	return &stats, nil
}
