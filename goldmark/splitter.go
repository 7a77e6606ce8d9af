// Package goldmark splits markdown into heading-delimited sections using
// the goldmark CommonMark parser, so headings inside code blocks, lists or
// block quotes never start a section.
package goldmark

import (
	"bytes"
	"strings"

	"github.com/solracnyc/gasrag"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// Ensure Splitter implements gasrag.SectionSplitter at compile time.
var _ gasrag.SectionSplitter = (*Splitter)(nil)

// Splitter implements gasrag.SectionSplitter.
type Splitter struct {
	md goldmark.Markdown
}

// NewSplitter creates a new Splitter with GFM tables enabled so pipe
// tables are parsed as blocks rather than paragraphs.
func NewSplitter() *Splitter {
	return &Splitter{
		md: goldmark.New(goldmark.WithExtensions(extension.Table)),
	}
}

type heading struct {
	offset int
	level  int
	title  string
}

// Split returns the sections of markdown in document order. Text before
// the first heading becomes a level-0 section. Each section's Content
// includes its heading line.
func (s *Splitter) Split(markdown string) []gasrag.Section {
	if strings.TrimSpace(markdown) == "" {
		return nil
	}

	source := []byte(markdown)
	doc := s.md.Parser().Parse(text.NewReader(source))

	var headings []heading
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if n.Kind() != ast.KindHeading {
			continue
		}
		h := n.(*ast.Heading)
		lines := h.Lines()
		if lines.Len() == 0 {
			continue
		}
		var title bytes.Buffer
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			if i > 0 {
				title.WriteByte(' ')
			}
			title.Write(bytes.TrimSpace(seg.Value(source)))
		}
		headings = append(headings, heading{
			offset: lineStart(source, lines.At(0).Start),
			level:  h.Level,
			title:  cleanTitle(title.String()),
		})
	}

	var sections []gasrag.Section
	if len(headings) == 0 || headings[0].offset > 0 {
		end := len(source)
		if len(headings) > 0 {
			end = headings[0].offset
		}
		if pre := strings.TrimSpace(string(source[:end])); pre != "" {
			sections = append(sections, gasrag.Section{Content: pre})
		}
	}

	var anchors gasrag.Anchors
	path := make([]heading, 0, 6)
	for i, h := range headings {
		end := len(source)
		if i+1 < len(headings) {
			end = headings[i+1].offset
		}

		for len(path) > 0 && path[len(path)-1].level >= h.level {
			path = path[:len(path)-1]
		}
		path = append(path, h)
		headers := make([]string, len(path))
		for j, p := range path {
			headers[j] = p.title
		}

		sections = append(sections, gasrag.Section{
			Level:   h.level,
			Title:   h.title,
			Anchor:  anchors.Next(h.title),
			Headers: headers,
			Content: strings.TrimSpace(string(source[h.offset:end])),
		})
	}

	return sections
}

// lineStart returns the offset of the first byte of the line containing off.
func lineStart(source []byte, off int) int {
	if off > len(source) {
		off = len(source)
	}
	i := bytes.LastIndexByte(source[:off], '\n')
	return i + 1
}

// cleanTitle strips inline code and emphasis markers from a heading.
func cleanTitle(s string) string {
	s = strings.NewReplacer("`", "", "**", "", "__", "").Replace(s)
	return strings.TrimSpace(s)
}
