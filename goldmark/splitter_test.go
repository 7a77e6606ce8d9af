package goldmark_test

import (
	"testing"

	"github.com/solracnyc/gasrag/goldmark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitter_Split(t *testing.T) {
	t.Parallel()

	t.Run("returns nil for empty input", func(t *testing.T) {
		t.Parallel()

		assert.Nil(t, goldmark.NewSplitter().Split("  \n"))
	})

	t.Run("splits on heading boundaries", func(t *testing.T) {
		t.Parallel()

		md := "# Spreadsheet\n\nIntro text.\n\n## Methods\n\nList of methods.\n\n## Properties\n\nList of properties.\n"

		sections := goldmark.NewSplitter().Split(md)

		require.Len(t, sections, 3)
		assert.Equal(t, "Spreadsheet", sections[0].Title)
		assert.Equal(t, 1, sections[0].Level)
		assert.Equal(t, "# Spreadsheet\n\nIntro text.", sections[0].Content)
		assert.Equal(t, "Methods", sections[1].Title)
		assert.Equal(t, []string{"Spreadsheet", "Methods"}, sections[1].Headers)
		assert.Equal(t, "## Properties\n\nList of properties.", sections[2].Content)
	})

	t.Run("keeps preamble before first heading", func(t *testing.T) {
		t.Parallel()

		sections := goldmark.NewSplitter().Split("Lead paragraph.\n\n# Title\n\nBody")

		require.Len(t, sections, 2)
		assert.Equal(t, 0, sections[0].Level)
		assert.Equal(t, "Lead paragraph.", sections[0].Content)
		assert.Equal(t, "Title", sections[1].Title)
	})

	t.Run("ignores hash lines inside code blocks", func(t *testing.T) {
		t.Parallel()

		md := "# Usage\n\n```bash\n# not a heading\necho hi\n```\n\nAfter code."

		sections := goldmark.NewSplitter().Split(md)

		require.Len(t, sections, 1)
		assert.Contains(t, sections[0].Content, "# not a heading")
		assert.Contains(t, sections[0].Content, "After code.")
	})

	t.Run("recognizes setext headings", func(t *testing.T) {
		t.Parallel()

		md := "Overview\n========\n\nText one.\n\nDetails\n-------\n\nText two."

		sections := goldmark.NewSplitter().Split(md)

		require.Len(t, sections, 2)
		assert.Equal(t, "Overview", sections[0].Title)
		assert.Equal(t, 2, sections[1].Level)
		assert.Equal(t, "Details\n-------\n\nText two.", sections[1].Content)
	})

	t.Run("resets header path at shallower level", func(t *testing.T) {
		t.Parallel()

		md := "# A\n\n## B\n\n### C\n\n## D\n\ntext"

		sections := goldmark.NewSplitter().Split(md)

		require.Len(t, sections, 4)
		assert.Equal(t, []string{"A", "B", "C"}, sections[2].Headers)
		assert.Equal(t, []string{"A", "D"}, sections[3].Headers)
	})

	t.Run("strips inline code from titles and dedups anchors", func(t *testing.T) {
		t.Parallel()

		md := "## `getRange()`\n\none\n\n## `getRange()`\n\ntwo"

		sections := goldmark.NewSplitter().Split(md)

		require.Len(t, sections, 2)
		assert.Equal(t, "getRange()", sections[0].Title)
		assert.Equal(t, "getrange", sections[0].Anchor)
		assert.Equal(t, "getrange-1", sections[1].Anchor)
	})
}
