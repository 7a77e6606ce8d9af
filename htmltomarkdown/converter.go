// Package htmltomarkdown converts HTML-only documentation pages to markdown
// so they can be split on heading boundaries.
package htmltomarkdown

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/solracnyc/gasrag"
)

// Ensure Converter implements gasrag.Converter at compile time.
var _ gasrag.Converter = (*Converter)(nil)

// chromeTags are page furniture that never carries reference content.
var chromeTags = []string{"nav", "header", "footer", "aside", "form", "button", "svg"}

// Converter wraps html-to-markdown to turn page HTML into Markdown.
type Converter struct {
	conv *converter.Converter

	// Domain, if set, resolves relative links against it.
	Domain string
}

// NewConverter creates a new Converter that drops navigation chrome.
func NewConverter() *Converter {
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	for _, tag := range chromeTags {
		conv.Register.TagType(tag, converter.TagTypeRemove, converter.PriorityStandard)
	}
	return &Converter{conv: conv}
}

// Convert transforms HTML content into Markdown.
func (c *Converter) Convert(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", gasrag.Errorf(gasrag.EINVALID, "empty HTML input")
	}

	var opts []converter.ConvertOptionFunc
	if c.Domain != "" {
		opts = append(opts, converter.WithDomain(c.Domain))
	}

	result, err := c.conv.ConvertString(html, opts...)
	if err != nil {
		return "", gasrag.Errorf(gasrag.EINVALID, "convert html: %v", err)
	}
	return strings.TrimSpace(result), nil
}
