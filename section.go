package gasrag

import (
	"strconv"
	"strings"
	"unicode"
)

// Section represents a heading-delimited part of a markdown document.
// The preamble before the first heading has Level 0 and no Title.
type Section struct {
	Level   int      `json:"level"`
	Title   string   `json:"title"`
	Anchor  string   `json:"anchor"`
	Headers []string `json:"headers,omitempty"`
	Content string   `json:"content"`
}

// SectionSplitter splits markdown on heading boundaries.
type SectionSplitter interface {
	Split(markdown string) []Section
}

// Anchors generates URL-safe anchors for headings, suffixing duplicates
// with a counter the way documentation sites do.
type Anchors struct {
	counts map[string]int
}

// Next returns the anchor for title, unique among anchors issued so far.
func (a *Anchors) Next(title string) string {
	if a.counts == nil {
		a.counts = make(map[string]int)
	}
	base := GenerateAnchor(title)
	if count, exists := a.counts[base]; exists {
		a.counts[base]++
		return base + "-" + strconv.Itoa(count)
	}
	a.counts[base] = 1
	return base
}

// GenerateAnchor creates a URL-safe anchor from a title.
// Converts to lowercase, replaces spaces with hyphens, removes special chars.
func GenerateAnchor(title string) string {
	var sb strings.Builder
	prevHyphen := false

	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			prevHyphen = false
		} else if unicode.IsSpace(r) || r == '-' {
			if !prevHyphen && sb.Len() > 0 {
				sb.WriteRune('-')
				prevHyphen = true
			}
		}
	}

	return strings.TrimSuffix(sb.String(), "-")
}
