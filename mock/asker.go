package mock

import (
	"context"

	"github.com/solracnyc/gasrag"
)

var _ gasrag.Asker = (*Asker)(nil)

// Asker is a mock implementation of gasrag.Asker.
type Asker struct {
	AskFn func(ctx context.Context, question string, results []gasrag.SearchResult) (string, error)
}

func (a *Asker) Ask(ctx context.Context, question string, results []gasrag.SearchResult) (string, error) {
	return a.AskFn(ctx, question, results)
}
