package mock

import (
	"context"

	"github.com/solracnyc/gasrag"
)

var _ gasrag.Chunker = (*Chunker)(nil)

// Chunker is a mock implementation of gasrag.Chunker.
type Chunker struct {
	ChunkFn func(ctx context.Context, page *gasrag.Page) ([]*gasrag.Chunk, error)
}

func (c *Chunker) Chunk(ctx context.Context, page *gasrag.Page) ([]*gasrag.Chunk, error) {
	return c.ChunkFn(ctx, page)
}
