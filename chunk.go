package gasrag

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChunkType classifies what a chunk was built from.
type ChunkType string

// ChunkType constants.
const (
	ChunkTypeMethod        ChunkType = "method"
	ChunkTypeProperties    ChunkType = "properties"
	ChunkTypeDocumentation ChunkType = "documentation"
)

// Chunk represents a section of a document optimized for embedding and retrieval.
type Chunk struct {
	ID              string    `json:"id"`
	DocumentID      string    `json:"documentId"`
	Content         string    `json:"content"`
	SourceURL       string    `json:"sourceUrl,omitempty"`
	Title           string    `json:"title,omitempty"`
	ChunkType       ChunkType `json:"chunkType,omitempty"`
	ComponentType   string    `json:"componentType,omitempty"`
	MethodSignature string    `json:"methodSignature,omitempty"`
	HasCode         bool      `json:"hasCode"`
	HasExample      bool      `json:"hasExample"`
	ChunkIndex      int       `json:"chunkIndex"`
	TokenEstimate   int       `json:"tokenEstimate"`

	// Heading path leading to the chunk (e.g., ["Spreadsheet", "Methods"]).
	Headers []string `json:"headers,omitempty"`

	// Extra source fields carried into the stored metadata.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Validate returns an error if the chunk contains invalid fields.
func (c *Chunk) Validate() error {
	if strings.TrimSpace(c.Content) == "" {
		return Errorf(EINVALID, "chunk content required")
	}
	if c.ChunkIndex < 0 {
		return Errorf(EINVALID, "chunk index must not be negative")
	}
	return nil
}

// EmbeddedChunk is a Chunk with its vector representation attached.
type EmbeddedChunk struct {
	Chunk
	Embedding      []float32 `json:"embedding"`
	EmbeddingModel string    `json:"embeddingModel,omitempty"`
	VectorNorm     float64   `json:"vectorNorm"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Validate returns an error unless the chunk can be written to the store:
// content is present, the embedding has Dimension finite values and the
// document ID and chunk index are set.
func (c *EmbeddedChunk) Validate() error {
	if err := c.Chunk.Validate(); err != nil {
		return err
	}
	if c.DocumentID == "" {
		return Errorf(EINVALID, "chunk document ID required")
	}
	return ValidateEmbedding(c.Embedding, Dimension)
}

// AssignDocumentID fills in a missing document ID derived from the source
// URL, falling back to the chunk ID. The derived ID is stable for a URL.
func (c *EmbeddedChunk) AssignDocumentID() {
	if c.DocumentID != "" {
		return
	}
	switch {
	case c.SourceURL != "":
		c.DocumentID = DocumentIDFor(c.SourceURL)
	case c.ID != "":
		c.DocumentID = DocumentIDFor(c.ID)
	}
}

// DocumentIDFor returns the stable document ID for a source identifier.
func DocumentIDFor(source string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(source)).String()
}

// RecordMetadata returns the metadata object stored with the chunk row.
// Structured fields take precedence over free-form Metadata keys.
func (c *Chunk) RecordMetadata() map[string]any {
	m := make(map[string]any, len(c.Metadata)+10)
	for k, v := range c.Metadata {
		m[k] = v
	}
	m["chunk_id"] = c.ID
	if c.SourceURL != "" {
		m["source_url"] = c.SourceURL
	}
	if c.Title != "" {
		m["title"] = c.Title
	}
	if c.ChunkType != "" {
		m["chunk_type"] = string(c.ChunkType)
	}
	if c.ComponentType != "" {
		m["component_type"] = c.ComponentType
	}
	if c.MethodSignature != "" {
		m["method_signature"] = c.MethodSignature
	}
	if len(c.Headers) > 0 {
		m["headers"] = c.Headers
	}
	m["has_code"] = c.HasCode
	m["has_example"] = c.HasExample
	m["tokens"] = c.TokenEstimate
	return m
}

// Chunker splits a page into ordered chunks.
type Chunker interface {
	Chunk(ctx context.Context, page *Page) ([]*Chunk, error)
}
