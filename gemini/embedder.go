package gemini

import (
	"context"
	"errors"

	"github.com/solracnyc/gasrag"
	"google.golang.org/genai"
)

// DefaultEmbeddingModel produces vectors truncatable to gasrag.Dimension.
const DefaultEmbeddingModel = "gemini-embedding-001"

// Ensure Embedder implements gasrag.EmbeddingService at compile time.
var _ gasrag.EmbeddingService = (*Embedder)(nil)

// Embedder implements gasrag.EmbeddingService using the Gemini embedding API.
type Embedder struct {
	client *genai.Client
	model  string
}

// NewEmbedder creates a new Embedder. An empty model selects
// DefaultEmbeddingModel.
func NewEmbedder(client *genai.Client, model string) *Embedder {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &Embedder{client: client, model: model}
}

// Model returns the embedding model name.
func (e *Embedder) Model() string { return e.model }

// Embed returns the gasrag.Dimension vector of text for the given task.
// API failures are returned as *gasrag.StatusError.
func (e *Embedder) Embed(ctx context.Context, text string, task gasrag.TaskType) ([]float32, error) {
	if text == "" {
		return nil, gasrag.Errorf(gasrag.EINVALID, "text required")
	}

	dims := int32(gasrag.Dimension)
	resp, err := e.client.Models.EmbedContent(ctx, e.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.EmbedContentConfig{
			TaskType:             task.APIName(),
			OutputDimensionality: &dims,
		},
	)
	if err != nil {
		return nil, statusError(err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, gasrag.Errorf(gasrag.EINTERNAL, "gemini returned no embedding")
	}

	return resp.Embeddings[0].Values, nil
}

// statusError converts a genai API error into a gasrag.StatusError so
// retry classification can read the HTTP status.
func statusError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Status
		}
		return &gasrag.StatusError{StatusCode: apiErr.Code, Message: msg}
	}
	return err
}
