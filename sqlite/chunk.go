package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/solracnyc/gasrag"
)

// Compile-time interface verification.
var _ gasrag.VectorDatabase = (*ChunkStore)(nil)

// ChunkStore implements gasrag.VectorDatabase using SQLite.
type ChunkStore struct {
	db *DB

	// Now returns the current time.
	Now func() time.Time
}

// NewChunkStore creates a new ChunkStore.
func NewChunkStore(db *DB) *ChunkStore {
	return &ChunkStore{db: db, Now: time.Now}
}

// UpsertChunks writes chunks in one transaction, replacing rows with the
// same (document_id, chunk_index).
func (s *ChunkStore) UpsertChunks(ctx context.Context, chunks []*gasrag.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for _, c := range chunks {
		if err := c.Validate(); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, chunk_index, content, content_hash, embedding, vector_norm, tokens, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (document_id, chunk_index) DO UPDATE SET
			id = excluded.id,
			content = excluded.content,
			content_hash = excluded.content_hash,
			embedding = excluded.embedding,
			vector_norm = excluded.vector_norm,
			tokens = excluded.tokens,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := s.Now().UTC()
	for _, c := range chunks {
		meta, err := json.Marshal(c.RecordMetadata())
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		norm := c.VectorNorm
		if norm == 0 {
			norm = gasrag.L2Norm(c.Embedding)
		}
		if _, err := stmt.ExecContext(ctx,
			c.ID, c.DocumentID, c.ChunkIndex, c.Content, hashContent(c.Content),
			encodeVector(c.Embedding), norm, c.TokenEstimate, string(meta),
			createdAt.UTC().Format(timeFormat), now.Format(timeFormat),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// DeleteChunks removes chunks by ID. Unknown IDs are ignored.
func (s *ChunkStore) DeleteChunks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE id IN ("+placeholders(len(ids))+")", args...)
	return err
}

// scoredRow is a chunk row with its vector loaded for scoring.
type scoredRow struct {
	result    gasrag.SearchResult
	embedding []float32
	norm      float64
}

func (s *ChunkStore) scan(ctx context.Context, filter map[string]any) ([]scoredRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, content, embedding, vector_norm, metadata
		FROM chunks
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []scoredRow
	for rows.Next() {
		var (
			r    scoredRow
			blob []byte
			meta string
		)
		if err := rows.Scan(&r.result.ID, &r.result.DocumentID, &r.result.ChunkIndex,
			&r.result.Content, &blob, &r.norm, &meta); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(meta), &r.result.Metadata); err != nil {
			return nil, fmt.Errorf("failed to parse metadata: %w", err)
		}
		if !gasrag.MatchesFilter(r.result.Metadata, filter) {
			continue
		}
		if r.embedding, err = decodeVector(blob); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func checkQueryVector(v []float32) (float64, error) {
	if len(v) != gasrag.Dimension {
		return 0, gasrag.Errorf(gasrag.EINVALID, "expected %d dimensions, not %d", gasrag.Dimension, len(v))
	}
	return gasrag.L2Norm(v), nil
}

// MatchDocuments returns up to q.Count rows whose cosine similarity to
// q.Embedding is at least q.Threshold, most similar first.
func (s *ChunkStore) MatchDocuments(ctx context.Context, q gasrag.MatchQuery) ([]gasrag.SearchResult, error) {
	norm, err := checkQueryVector(q.Embedding)
	if err != nil {
		return nil, err
	}
	rows, err := s.scan(ctx, q.Filter)
	if err != nil {
		return nil, err
	}

	results := make([]gasrag.SearchResult, 0, len(rows))
	for _, r := range rows {
		sim := gasrag.CosineSimilarityWithNorms(q.Embedding, r.embedding, norm, r.norm)
		if sim < q.Threshold {
			continue
		}
		r.result.Similarity = sim
		results = append(results, r.result)
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	return limit(results, q.Count), nil
}

// HybridSearch ranks rows by a weighted sum of vector similarity and the
// fraction of query terms present in the content.
func (s *ChunkStore) HybridSearch(ctx context.Context, q gasrag.HybridQuery) ([]gasrag.SearchResult, error) {
	norm, err := checkQueryVector(q.Embedding)
	if err != nil {
		return nil, err
	}
	rows, err := s.scan(ctx, nil)
	if err != nil {
		return nil, err
	}

	results := make([]gasrag.SearchResult, 0, len(rows))
	for _, r := range rows {
		sim := gasrag.CosineSimilarityWithNorms(q.Embedding, r.embedding, norm, r.norm)
		if sim < q.Threshold {
			continue
		}
		r.result.Similarity = sim
		r.result.CombinedScore = q.VectorWeight*sim + q.TextWeight*textScore(q.Text, r.result.Content)
		results = append(results, r.result)
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CombinedScore > results[j].CombinedScore
	})
	return limit(results, q.Count), nil
}

func limit(results []gasrag.SearchResult, count int) []gasrag.SearchResult {
	if count > 0 && len(results) > count {
		return results[:count]
	}
	return results
}

// ChunksByDocument returns the chunks of a document ordered by index.
func (s *ChunkStore) ChunksByDocument(ctx context.Context, documentID string) ([]*gasrag.StoredChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, content, embedding, metadata, created_at
		FROM chunks
		WHERE document_id = ?
		ORDER BY chunk_index ASC
	`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*gasrag.StoredChunk
	for rows.Next() {
		var (
			c         gasrag.StoredChunk
			blob      []byte
			meta      string
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Content, &blob, &meta, &createdAt); err != nil {
			return nil, err
		}
		if c.Embedding, err = decodeVector(blob); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(meta), &c.Metadata); err != nil {
			return nil, fmt.Errorf("failed to parse metadata: %w", err)
		}
		if c.CreatedAt, err = parseRFC3339(createdAt, "created_at"); err != nil {
			return nil, err
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

// DatabaseStats summarizes the chunk table.
func (s *ChunkStore) DatabaseStats(ctx context.Context) (*gasrag.DatabaseStats, error) {
	var (
		stats          gasrag.DatabaseStats
		avg            sql.NullFloat64
		oldest, newest sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT document_id), COUNT(*), AVG(tokens), MIN(created_at), MAX(created_at)
		FROM chunks
	`).Scan(&stats.TotalDocuments, &stats.TotalChunks, &avg, &oldest, &newest)
	if err != nil {
		return nil, err
	}
	stats.AvgChunkTokens = avg.Float64

	for _, f := range []struct {
		value sql.NullString
		dst   **time.Time
		name  string
	}{
		{oldest, &stats.OldestChunk, "oldest_chunk"},
		{newest, &stats.NewestChunk, "newest_chunk"},
	} {
		if !f.value.Valid {
			continue
		}
		t, err := parseRFC3339(f.value.String, f.name)
		if err != nil {
			return nil, err
		}
		*f.dst = &t
	}

	var pages, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pages); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, err
	}
	stats.StorageSize = formatBytes(pages * pageSize)

	return &stats, nil
}
