package gasrag

import (
	"context"
	"fmt"
	"time"
)

// SearchResult is a ranked row returned by a similarity or hybrid search.
type SearchResult struct {
	ID            string         `json:"id"`
	DocumentID    string         `json:"documentId,omitempty"`
	ChunkIndex    int            `json:"chunkIndex"`
	Content       string         `json:"content"`
	Similarity    float64        `json:"similarity"`
	CombinedScore float64        `json:"combinedScore,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// StoredChunk is a chunk row as persisted by the vector database.
type StoredChunk struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"documentId"`
	ChunkIndex int            `json:"chunkIndex"`
	Content    string         `json:"content"`
	Embedding  []float32      `json:"embedding,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// DatabaseStats summarizes the contents of the vector database.
type DatabaseStats struct {
	TotalDocuments int        `json:"total_documents"`
	TotalChunks    int        `json:"total_chunks"`
	AvgChunkTokens float64    `json:"avg_chunk_tokens"`
	StorageSize    string     `json:"storage_size"`
	OldestChunk    *time.Time `json:"oldest_chunk,omitempty"`
	NewestChunk    *time.Time `json:"newest_chunk,omitempty"`
}

// MatchQuery holds the arguments of the match_documents procedure.
type MatchQuery struct {
	Embedding []float32
	Threshold float64
	Count     int

	// Filter restricts rows to those whose metadata contains every
	// key/value pair.
	Filter map[string]any
}

// HybridQuery holds the arguments of the hybrid_search procedure.
type HybridQuery struct {
	Text         string
	Embedding    []float32
	Threshold    float64
	Count        int
	VectorWeight float64
	TextWeight   float64
}

// VectorDatabase is the remote procedure surface of the vector database.
// Rows are keyed on (document_id, chunk_index); upserts replace rows
// with the same key.
type VectorDatabase interface {
	UpsertChunks(ctx context.Context, chunks []*EmbeddedChunk) error
	DeleteChunks(ctx context.Context, ids []string) error
	MatchDocuments(ctx context.Context, q MatchQuery) ([]SearchResult, error)
	HybridSearch(ctx context.Context, q HybridQuery) ([]SearchResult, error)
	ChunksByDocument(ctx context.Context, documentID string) ([]*StoredChunk, error)
	DatabaseStats(ctx context.Context) (*DatabaseStats, error)
}

// SearchOptions configures a similarity search.
type SearchOptions struct {
	// Minimum similarity score (0-1).
	Threshold float64 `json:"threshold"`

	// Maximum number of results to return.
	Count int `json:"count"`

	// Metadata equality filter applied to returned rows.
	Filter map[string]any `json:"filter,omitempty"`
}

// HybridOptions configures a hybrid text + vector search.
type HybridOptions struct {
	Threshold    float64 `json:"threshold"`
	Count        int     `json:"count"`
	VectorWeight float64 `json:"vectorWeight"`
	TextWeight   float64 `json:"textWeight"`
}

// WriteResult reports the outcome of an insert or update.
type WriteResult struct {
	Written int `json:"written"`
	Batches int `json:"batches"`
}

// HealthStatus classifies the vector database round-trip.
type HealthStatus string

// HealthStatus constants.
const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// Health is the result of a health check.
type Health struct {
	Status       HealthStatus  `json:"status"`
	Latency      time.Duration `json:"latency"`
	CircuitState string        `json:"circuitState"`
	Error        string        `json:"error,omitempty"`
}

// ChunkWriter writes embedded chunks to storage.
type ChunkWriter interface {
	Insert(ctx context.Context, chunks []*EmbeddedChunk) (*WriteResult, error)
}

// ChunkSearcher runs similarity searches.
type ChunkSearcher interface {
	SimilaritySearch(ctx context.Context, embedding []float32, opts SearchOptions) ([]SearchResult, error)
}

// VectorStore represents the fault-tolerant client of the vector database.
type VectorStore interface {
	ChunkWriter
	ChunkSearcher

	// Update rewrites existing chunks. Chunks must carry a document ID.
	Update(ctx context.Context, chunks []*EmbeddedChunk) (*WriteResult, error)

	// Delete removes chunks by ID.
	Delete(ctx context.Context, ids []string) error

	// HybridSearch combines full-text and vector similarity.
	HybridSearch(ctx context.Context, text string, embedding []float32, opts HybridOptions) ([]SearchResult, error)

	// GetByDocumentID returns the chunks of a document ordered by index.
	GetByDocumentID(ctx context.Context, documentID string) ([]*StoredChunk, error)

	// Stats returns database statistics.
	Stats(ctx context.Context) (*DatabaseStats, error)

	// HealthCheck measures round-trip latency and reports circuit state.
	HealthCheck(ctx context.Context) Health
}

// MatchesFilter reports whether metadata contains every key of filter with
// an equal value. Values are compared by their printed form so numbers
// decoded from JSON match integer filters.
func MatchesFilter(metadata, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := metadata[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}
