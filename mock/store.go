package mock

import (
	"context"

	"github.com/solracnyc/gasrag"
)

var _ gasrag.VectorStore = (*VectorStore)(nil)

// VectorStore is a mock implementation of gasrag.VectorStore.
type VectorStore struct {
	InsertFn           func(ctx context.Context, chunks []*gasrag.EmbeddedChunk) (*gasrag.WriteResult, error)
	UpdateFn           func(ctx context.Context, chunks []*gasrag.EmbeddedChunk) (*gasrag.WriteResult, error)
	DeleteFn           func(ctx context.Context, ids []string) error
	SimilaritySearchFn func(ctx context.Context, embedding []float32, opts gasrag.SearchOptions) ([]gasrag.SearchResult, error)
	HybridSearchFn     func(ctx context.Context, text string, embedding []float32, opts gasrag.HybridOptions) ([]gasrag.SearchResult, error)
	GetByDocumentIDFn  func(ctx context.Context, documentID string) ([]*gasrag.StoredChunk, error)
	StatsFn            func(ctx context.Context) (*gasrag.DatabaseStats, error)
	HealthCheckFn      func(ctx context.Context) gasrag.Health
}

func (s *VectorStore) Insert(ctx context.Context, chunks []*gasrag.EmbeddedChunk) (*gasrag.WriteResult, error) {
	return s.InsertFn(ctx, chunks)
}

func (s *VectorStore) Update(ctx context.Context, chunks []*gasrag.EmbeddedChunk) (*gasrag.WriteResult, error) {
	return s.UpdateFn(ctx, chunks)
}

func (s *VectorStore) Delete(ctx context.Context, ids []string) error {
	return s.DeleteFn(ctx, ids)
}

func (s *VectorStore) SimilaritySearch(ctx context.Context, embedding []float32, opts gasrag.SearchOptions) ([]gasrag.SearchResult, error) {
	return s.SimilaritySearchFn(ctx, embedding, opts)
}

func (s *VectorStore) HybridSearch(ctx context.Context, text string, embedding []float32, opts gasrag.HybridOptions) ([]gasrag.SearchResult, error) {
	return s.HybridSearchFn(ctx, text, embedding, opts)
}

func (s *VectorStore) GetByDocumentID(ctx context.Context, documentID string) ([]*gasrag.StoredChunk, error) {
	return s.GetByDocumentIDFn(ctx, documentID)
}

func (s *VectorStore) Stats(ctx context.Context) (*gasrag.DatabaseStats, error) {
	return s.StatsFn(ctx)
}

func (s *VectorStore) HealthCheck(ctx context.Context) gasrag.Health {
	return s.HealthCheckFn(ctx)
}
