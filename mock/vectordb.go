package mock

import (
	"context"

	"github.com/solracnyc/gasrag"
)

var _ gasrag.VectorDatabase = (*VectorDatabase)(nil)

// VectorDatabase is a mock implementation of gasrag.VectorDatabase.
type VectorDatabase struct {
	UpsertChunksFn     func(ctx context.Context, chunks []*gasrag.EmbeddedChunk) error
	DeleteChunksFn     func(ctx context.Context, ids []string) error
	MatchDocumentsFn   func(ctx context.Context, q gasrag.MatchQuery) ([]gasrag.SearchResult, error)
	HybridSearchFn     func(ctx context.Context, q gasrag.HybridQuery) ([]gasrag.SearchResult, error)
	ChunksByDocumentFn func(ctx context.Context, documentID string) ([]*gasrag.StoredChunk, error)
	DatabaseStatsFn    func(ctx context.Context) (*gasrag.DatabaseStats, error)
}

func (db *VectorDatabase) UpsertChunks(ctx context.Context, chunks []*gasrag.EmbeddedChunk) error {
	return db.UpsertChunksFn(ctx, chunks)
}

func (db *VectorDatabase) DeleteChunks(ctx context.Context, ids []string) error {
	return db.DeleteChunksFn(ctx, ids)
}

func (db *VectorDatabase) MatchDocuments(ctx context.Context, q gasrag.MatchQuery) ([]gasrag.SearchResult, error) {
	return db.MatchDocumentsFn(ctx, q)
}

func (db *VectorDatabase) HybridSearch(ctx context.Context, q gasrag.HybridQuery) ([]gasrag.SearchResult, error) {
	return db.HybridSearchFn(ctx, q)
}

func (db *VectorDatabase) ChunksByDocument(ctx context.Context, documentID string) ([]*gasrag.StoredChunk, error) {
	return db.ChunksByDocumentFn(ctx, documentID)
}

func (db *VectorDatabase) DatabaseStats(ctx context.Context) (*gasrag.DatabaseStats, error) {
	return db.DatabaseStatsFn(ctx)
}
