package gasrag_test

import (
	"testing"

	"github.com/solracnyc/gasrag"
	"github.com/stretchr/testify/assert"
)

func TestFormatResults(t *testing.T) {
	t.Parallel()

	t.Run("formats single result with title", func(t *testing.T) {
		t.Parallel()

		results := []gasrag.SearchResult{
			{ID: "c1", Content: "Returns the active sheet.", Similarity: 0.9125, Metadata: map[string]any{"title": "Spreadsheet"}},
		}

		assert.Equal(t, "## Spreadsheet (0.912)\nReturns the active sheet.", gasrag.FormatResults(results))
	})

	t.Run("uses source URL when title is empty", func(t *testing.T) {
		t.Parallel()

		results := []gasrag.SearchResult{
			{ID: "c1", Content: "Some content.", Similarity: 1, Metadata: map[string]any{"source_url": "https://example.com/range"}},
		}

		assert.Equal(t, "## https://example.com/range (1.000)\nSome content.", gasrag.FormatResults(results))
	})

	t.Run("falls back to ID without metadata", func(t *testing.T) {
		t.Parallel()

		results := []gasrag.SearchResult{{ID: "abc", Content: "x", Similarity: 0.5}}

		assert.Equal(t, "## abc (0.500)\nx", gasrag.FormatResults(results))
	})

	t.Run("separates multiple results with blank line", func(t *testing.T) {
		t.Parallel()

		results := []gasrag.SearchResult{
			{ID: "a", Content: "First.", Similarity: 0.9},
			{ID: "b", Content: "Second.", Similarity: 0.8},
		}

		assert.Equal(t, "## a (0.900)\nFirst.\n\n## b (0.800)\nSecond.", gasrag.FormatResults(results))
	})

	t.Run("returns empty string for empty slice", func(t *testing.T) {
		t.Parallel()

		assert.Empty(t, gasrag.FormatResults(nil))
	})
}
