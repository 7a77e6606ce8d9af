package gasrag

// Converter converts HTML to Markdown.
type Converter interface {
	// Convert transforms HTML content into Markdown. Pages that arrive with
	// only HTML are converted before chunking.
	Convert(html string) (string, error)
}
