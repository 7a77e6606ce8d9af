package fs

import (
	"bytes"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/solracnyc/gasrag"
	"gopkg.in/yaml.v3"
)

// frontmatter is the header written above saved markdown pages.
type frontmatter struct {
	Source    string `yaml:"source"`
	Title     string `yaml:"title"`
	Component string `yaml:"component"`
}

// ReadPages loads crawled pages from path. A file may hold one JSON page
// object or a JSON array of pages. A directory is walked for .json files
// and for .md files with a YAML frontmatter naming the source URL.
// Pages are returned in path order.
func ReadPages(path string) ([]*gasrag.Page, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return readPageFile(path)
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(p)) {
		case ".json", ".md":
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	var pages []*gasrag.Page
	for _, f := range files {
		ps, err := readPageFile(f)
		if err != nil {
			return nil, err
		}
		pages = append(pages, ps...)
	}
	return pages, nil
}

func readPageFile(path string) ([]*gasrag.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(filepath.Ext(path), ".md") {
		page, err := ParseMarkdownPage(data)
		if err != nil {
			return nil, gasrag.Errorf(gasrag.EINVALID, "%s: %s", filepath.Base(path), gasrag.ErrorMessage(err))
		}
		return []*gasrag.Page{page}, nil
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var pages []*gasrag.Page
		if err := json.Unmarshal(trimmed, &pages); err != nil {
			return nil, gasrag.Errorf(gasrag.EINVALID, "%s: %v", filepath.Base(path), err)
		}
		return pages, nil
	}
	var page gasrag.Page
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, gasrag.Errorf(gasrag.EINVALID, "%s: %v", filepath.Base(path), err)
	}
	return []*gasrag.Page{&page}, nil
}

// ParseMarkdownPage parses a markdown document with a YAML frontmatter
// block delimited by "---" lines. The frontmatter must name the source.
func ParseMarkdownPage(data []byte) (*gasrag.Page, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	if !strings.HasPrefix(text, "---\n") {
		return nil, gasrag.Errorf(gasrag.EINVALID, "missing frontmatter")
	}
	header, body, ok := strings.Cut(text[len("---\n"):], "\n---\n")
	if !ok {
		return nil, gasrag.Errorf(gasrag.EINVALID, "unterminated frontmatter")
	}

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		return nil, gasrag.Errorf(gasrag.EINVALID, "malformed frontmatter: %v", err)
	}
	if fm.Source == "" {
		return nil, gasrag.Errorf(gasrag.EINVALID, "frontmatter source required")
	}
	return &gasrag.Page{
		URL:           fm.Source,
		Title:         fm.Title,
		ComponentType: fm.Component,
		Content:       strings.TrimSpace(body),
	}, nil
}

// ReadRecords loads a JSON array of exported chunk records.
func ReadRecords(path string) ([]gasrag.RawRecord, error) {
	var records []gasrag.RawRecord
	if err := readJSON(path, &records); err != nil {
		return nil, err
	}
	return records, nil
}
