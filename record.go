package gasrag

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RawRecord is an externally sourced chunk record as decoded from JSON.
// Field names vary between exporters; NormalizeRecord resolves them.
type RawRecord map[string]any

// NormalizeRecord converts a raw record into a canonical EmbeddedChunk.
// position is the record's offset in its input and is used as the chunk
// index when the record carries none. Invalid records return EINVALID.
func NormalizeRecord(raw RawRecord, position int) (*EmbeddedChunk, error) {
	content := strings.TrimSpace(raw.firstString("content", "text", "chunk_content"))
	if content == "" {
		return nil, Errorf(EINVALID, "record %d: content required", position)
	}

	embedding, err := parseEmbedding(raw["embedding"])
	if err != nil {
		return nil, Errorf(EINVALID, "record %d: %s", position, ErrorMessage(err))
	}
	if err := ValidateEmbedding(embedding, Dimension); err != nil {
		return nil, Errorf(EINVALID, "record %d: %s", position, ErrorMessage(err))
	}

	meta, _ := raw["metadata"].(map[string]any)

	c := &EmbeddedChunk{
		Chunk: Chunk{
			ID:            raw.firstString("id", "chunk_id"),
			DocumentID:    raw.firstString("document_id"),
			Content:       content,
			SourceURL:     raw.firstString("url", "source_url", "source"),
			Title:         raw.firstString("title"),
			ChunkType:     ChunkType(stringValue(meta["chunk_type"])),
			ComponentType: stringValue(meta["component_type"]),
			ChunkIndex:    position,
			Metadata:      make(map[string]any),
		},
		Embedding:  embedding,
		VectorNorm: L2Norm(embedding),
	}

	// Merge metadata: nested object first, then top-level fields override.
	for k, v := range meta {
		c.Metadata[k] = v
	}
	if c.SourceURL == "" {
		c.SourceURL = stringValue(meta["source_url"])
		if c.SourceURL == "" {
			c.SourceURL = stringValue(meta["url"])
		}
	}
	if c.Title == "" {
		c.Title = stringValue(meta["title"])
	}
	if c.DocumentID == "" {
		c.DocumentID = stringValue(meta["document_id"])
	}
	if idx, ok := intValue(raw["chunk_index"]); ok && idx >= 0 {
		c.ChunkIndex = idx
	} else if idx, ok := intValue(meta["chunk_index"]); ok && idx >= 0 {
		c.ChunkIndex = idx
	}
	if n, ok := intValue(raw["tokens"]); ok {
		c.TokenEstimate = n
	} else if n, ok := intValue(meta["tokens"]); ok {
		c.TokenEstimate = n
	} else {
		c.TokenEstimate = (len(content) + 3) / 4
	}
	if s := raw.firstString("created_at"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			c.CreatedAt = t
		}
	}
	c.HasCode = strings.Contains(content, "```")
	if v, ok := meta["has_example"].(bool); ok {
		c.HasExample = v
	}

	c.AssignDocumentID()
	if c.ID == "" {
		c.ID = fmt.Sprintf("%s:%d", c.DocumentID, c.ChunkIndex)
	}
	return c, nil
}

func (r RawRecord) firstString(keys ...string) string {
	for _, k := range keys {
		if s := stringValue(r[k]); s != "" {
			return s
		}
	}
	return ""
}

func stringValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}

func intValue(v any) (int, bool) {
	switch v := v.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}

// parseEmbedding accepts a JSON array or a string holding a JSON array.
func parseEmbedding(v any) ([]float32, error) {
	switch v := v.(type) {
	case nil:
		return nil, Errorf(EINVALID, "embedding required")
	case string:
		var values []float64
		if err := json.Unmarshal([]byte(v), &values); err != nil {
			return nil, Errorf(EINVALID, "malformed embedding JSON: %v", err)
		}
		out := make([]float32, len(values))
		for i, x := range values {
			out[i] = float32(x)
		}
		return out, nil
	case []float32:
		return v, nil
	case []float64:
		out := make([]float32, len(v))
		for i, x := range v {
			out[i] = float32(x)
		}
		return out, nil
	case []any:
		out := make([]float32, len(v))
		for i, x := range v {
			switch x := x.(type) {
			case float64:
				out[i] = float32(x)
			case json.Number:
				f, err := x.Float64()
				if err != nil {
					return nil, Errorf(EINVALID, "embedding value at index %d is not a number", i)
				}
				out[i] = float32(f)
			default:
				return nil, Errorf(EINVALID, "embedding value at index %d is not a number", i)
			}
		}
		return out, nil
	default:
		return nil, Errorf(EINVALID, "unsupported embedding type %T", v)
	}
}
