package gasrag

import "context"

// TaskType hints the embedding model about how a vector will be used.
type TaskType string

// TaskType constants.
const (
	TaskDocument TaskType = "document"
	TaskQuery    TaskType = "query"
)

// APIName returns the task type name understood by the embedding service.
func (t TaskType) APIName() string {
	if t == TaskQuery {
		return "RETRIEVAL_QUERY"
	}
	return "RETRIEVAL_DOCUMENT"
}

// EmbeddingService generates vectors with a remote embedding model.
type EmbeddingService interface {
	// Embed returns the embedding of text. Implementations return a
	// StatusError for HTTP failures so callers can classify them.
	Embed(ctx context.Context, text string, task TaskType) ([]float32, error)

	// Model returns the embedding model identifier.
	Model() string
}
