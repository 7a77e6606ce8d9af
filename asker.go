package gasrag

import "context"

// Asker synthesizes an answer from retrieved chunks.
type Asker interface {
	// Ask answers question using only the given search results as context.
	// Returns EINVALID if question is empty and ENOTFOUND if results is empty.
	Ask(ctx context.Context, question string, results []SearchResult) (string, error)
}
