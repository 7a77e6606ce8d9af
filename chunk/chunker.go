// Package chunk splits documentation pages into retrieval chunks.
//
// Structured method and property entries become dedicated chunks; the
// remaining markdown is split on heading boundaries and oversized sections
// are cut with a sliding token window. Chunk IDs are stable hashes of the
// source URL and the chunk's position, so re-chunking is idempotent.
package chunk

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/solracnyc/gasrag"
)

// Default chunk sizing in tokens.
const (
	DefaultChunkSize = 450
	DefaultOverlap   = 67
)

// Ensure Chunker implements gasrag.Chunker at compile time.
var _ gasrag.Chunker = (*Chunker)(nil)

// Chunker implements gasrag.Chunker.
type Chunker struct {
	// ChunkSize is the target chunk size in tokens.
	ChunkSize int

	// Overlap is the number of tokens shared by consecutive windows.
	Overlap int

	// Splitter splits markdown on heading boundaries. Required.
	Splitter gasrag.SectionSplitter

	// Converter turns HTML into markdown for pages without markdown.
	Converter gasrag.Converter

	// TokenCounter, if set, replaces the character-based token estimate.
	TokenCounter gasrag.TokenCounter

	Logger *slog.Logger
}

// NewChunker returns a Chunker with default sizing.
func NewChunker(splitter gasrag.SectionSplitter) *Chunker {
	return &Chunker{
		ChunkSize: DefaultChunkSize,
		Overlap:   DefaultOverlap,
		Splitter:  splitter,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Chunk splits page into ordered chunks. Malformed structured entries are
// logged and skipped.
func (c *Chunker) Chunk(ctx context.Context, page *gasrag.Page) ([]*gasrag.Chunk, error) {
	if page == nil || page.URL == "" {
		return nil, gasrag.Errorf(gasrag.EINVALID, "page URL required")
	}
	if c.Splitter == nil {
		return nil, gasrag.Errorf(gasrag.EINTERNAL, "chunker has no section splitter")
	}

	markdown := page.Content
	if strings.TrimSpace(markdown) == "" && page.HTML != "" && c.Converter != nil {
		converted, err := c.Converter.Convert(page.HTML)
		if err != nil {
			c.logger().Warn("html conversion failed", "url", page.URL, "err", err)
		} else {
			markdown = converted
		}
	}

	b := &builder{chunker: c, page: page, docID: gasrag.DocumentIDFor(page.URL)}

	for i, m := range page.Methods {
		if strings.TrimSpace(m.Name) == "" {
			c.logger().Warn("skipping malformed method entry", "url", page.URL, "index", i)
			continue
		}
		b.add(ctx, methodContent(page.ComponentType, m), "method:"+methodSignature(m), func(ch *gasrag.Chunk) {
			ch.ChunkType = gasrag.ChunkTypeMethod
			ch.MethodSignature = methodSignature(m)
			ch.HasCode = m.Example != ""
			ch.HasExample = m.Example != ""
			ch.Headers = []string{page.ComponentType, m.Name}
		})
	}

	if content, ok := c.propertiesContent(page); ok {
		b.add(ctx, content, "properties", func(ch *gasrag.Chunk) {
			ch.ChunkType = gasrag.ChunkTypeProperties
		})
	}

	for i, sec := range c.Splitter.Split(markdown) {
		text := strings.TrimSpace(sec.Content)
		if text == "" {
			continue
		}
		decorate := func(ch *gasrag.Chunk) {
			ch.ChunkType = gasrag.ChunkTypeDocumentation
			ch.Headers = sec.Headers
			ch.HasCode = strings.Contains(ch.Content, "```")
			ch.HasExample = ch.HasCode && strings.Contains(strings.ToLower(ch.Content), "example")
			if sec.Title != "" {
				ch.Title = sec.Title
			}
			if sec.Anchor != "" {
				ch.Metadata = map[string]any{"anchor": sec.Anchor}
			}
		}

		if EstimateTokens(text) <= 3*c.chunkSize() {
			b.add(ctx, text, fmt.Sprintf("section:%d", i), decorate)
			continue
		}
		for j, window := range Windows(text, c.chunkSize(), c.overlap()) {
			b.add(ctx, window, fmt.Sprintf("section:%d:%d", i, j), decorate)
		}
	}

	return b.chunks, nil
}

func (c *Chunker) chunkSize() int {
	if c.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return c.ChunkSize
}

func (c *Chunker) overlap() int {
	if c.Overlap < 0 || c.Overlap >= c.chunkSize() {
		return c.chunkSize() * 15 / 100
	}
	return c.Overlap
}

func (c *Chunker) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c.Logger
}

func (c *Chunker) propertiesContent(page *gasrag.Page) (string, bool) {
	var sb strings.Builder
	n := 0
	for i, p := range page.Properties {
		if strings.TrimSpace(p.Name) == "" {
			c.logger().Warn("skipping malformed property entry", "url", page.URL, "index", i)
			continue
		}
		if n == 0 {
			name := page.ComponentType
			if name == "" {
				name = page.Title
			}
			fmt.Fprintf(&sb, "## %s properties\n\n", strings.TrimSpace(name))
		}
		fmt.Fprintf(&sb, "- `%s`", p.Name)
		if p.Type != "" {
			fmt.Fprintf(&sb, " (%s)", p.Type)
		}
		if p.Description != "" {
			fmt.Fprintf(&sb, ": %s", p.Description)
		}
		sb.WriteByte('\n')
		n++
	}
	return strings.TrimSpace(sb.String()), n > 0
}

// builder accumulates chunks for one page, assigning positions and IDs.
type builder struct {
	chunker *Chunker
	page    *gasrag.Page
	docID   string
	chunks  []*gasrag.Chunk
}

func (b *builder) add(ctx context.Context, content, identifier string, decorate func(*gasrag.Chunk)) {
	ch := &gasrag.Chunk{
		ID:            ID(b.page.URL, identifier),
		DocumentID:    b.docID,
		Content:       content,
		SourceURL:     b.page.URL,
		Title:         b.page.Title,
		ComponentType: b.page.ComponentType,
		ChunkIndex:    len(b.chunks),
	}
	decorate(ch)
	ch.TokenEstimate = b.chunker.countTokens(ctx, content)
	b.chunks = append(b.chunks, ch)
}

func (c *Chunker) countTokens(ctx context.Context, text string) int {
	if c.TokenCounter != nil {
		n, err := c.TokenCounter.CountTokens(ctx, text)
		if err == nil {
			return n
		}
		c.logger().Warn("token count failed, using estimate", "err", err)
	}
	return EstimateTokens(text)
}

// ID returns the stable chunk ID for a source URL and identifier.
func ID(sourceURL, identifier string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(sourceURL+"|"+identifier))
}

// EstimateTokens approximates the token count of text at four characters
// per token.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// Windows splits text into windows of at most size estimated tokens
// (see EstimateTokens), consecutive windows sharing up to overlap tokens.
// Windows break only at whitespace; a single word longer than size forms
// its own window. Whitespace inside a window is preserved.
func Windows(text string, size, overlap int) []string {
	spans := tokenSpans(text)
	if len(spans) == 0 {
		return nil
	}
	tokens := func(from, to int) int {
		return EstimateTokens(text[spans[from][0]:spans[to][1]])
	}

	var out []string
	for start := 0; ; {
		end := start + 1
		for end < len(spans) && tokens(start, end) <= size {
			end++
		}
		out = append(out, text[spans[start][0]:spans[end-1][1]])
		if end == len(spans) {
			return out
		}

		next := end
		for next-1 > start && tokens(next-1, end-1) <= overlap {
			next--
		}
		start = next
	}
}

// tokenSpans returns [start, end) byte offsets of whitespace-delimited tokens.
func tokenSpans(text string) [][2]int {
	var spans [][2]int
	start := -1
	for i, r := range text {
		space := r == ' ' || r == '\n' || r == '\t' || r == '\r'
		switch {
		case space && start >= 0:
			spans = append(spans, [2]int{start, i})
			start = -1
		case !space && start < 0:
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, [2]int{start, len(text)})
	}
	return spans
}

func methodSignature(m gasrag.MethodDoc) string {
	if s := strings.TrimSpace(m.Signature); s != "" {
		return s
	}
	names := make([]string, len(m.Parameters))
	for i, p := range m.Parameters {
		names[i] = p.Name
	}
	return fmt.Sprintf("%s(%s)", strings.TrimSpace(m.Name), strings.Join(names, ", "))
}

func methodContent(component string, m gasrag.MethodDoc) string {
	var sb strings.Builder
	heading := methodSignature(m)
	if component != "" {
		heading = component + "." + heading
	}
	fmt.Fprintf(&sb, "## %s\n\n", heading)
	if m.Description != "" {
		sb.WriteString(strings.TrimSpace(m.Description))
		sb.WriteString("\n\n")
	}
	if len(m.Parameters) > 0 {
		sb.WriteString("### Parameters\n\n")
		for _, p := range m.Parameters {
			fmt.Fprintf(&sb, "- `%s`", p.Name)
			if p.Type != "" {
				fmt.Fprintf(&sb, " (%s)", p.Type)
			}
			if p.Description != "" {
				fmt.Fprintf(&sb, ": %s", p.Description)
			}
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}
	if m.ReturnType != "" {
		fmt.Fprintf(&sb, "### Return\n\n`%s`", m.ReturnType)
		if m.ReturnDescription != "" {
			fmt.Fprintf(&sb, ": %s", m.ReturnDescription)
		}
		sb.WriteString("\n\n")
	}
	if m.Example != "" {
		fmt.Fprintf(&sb, "### Example\n\n```javascript\n%s\n```\n", strings.TrimSpace(m.Example))
	}
	return strings.TrimSpace(sb.String())
}
