package gasrag

import (
	"fmt"
	"strings"
)

// ResultTitle returns the display title of a search result. Uses the title
// metadata if available, falls back to the source URL and then the ID.
func ResultTitle(r SearchResult) string {
	for _, key := range []string{"title", "source_url"} {
		if s, ok := r.Metadata[key].(string); ok && s != "" {
			return s
		}
	}
	return r.ID
}

// FormatResults formats search results for display or LLM context.
// Results are separated by blank lines.
func FormatResults(results []SearchResult) string {
	if len(results) == 0 {
		return ""
	}

	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, fmt.Sprintf("## %s (%.3f)\n%s", ResultTitle(r), r.Similarity, r.Content))
	}

	return strings.Join(parts, "\n\n")
}
