package mock

import (
	"context"

	"github.com/solracnyc/gasrag"
)

var _ gasrag.EmbeddingService = (*EmbeddingService)(nil)

// EmbeddingService is a mock implementation of gasrag.EmbeddingService.
type EmbeddingService struct {
	EmbedFn func(ctx context.Context, text string, task gasrag.TaskType) ([]float32, error)
	ModelFn func() string
}

func (s *EmbeddingService) Embed(ctx context.Context, text string, task gasrag.TaskType) ([]float32, error) {
	return s.EmbedFn(ctx, text, task)
}

func (s *EmbeddingService) Model() string {
	if s.ModelFn == nil {
		return "mock-embedding"
	}
	return s.ModelFn()
}
