package mock

import "github.com/solracnyc/gasrag"

var _ gasrag.SectionSplitter = (*SectionSplitter)(nil)

// SectionSplitter is a mock implementation of gasrag.SectionSplitter.
type SectionSplitter struct {
	SplitFn func(markdown string) []gasrag.Section
}

func (s *SectionSplitter) Split(markdown string) []gasrag.Section {
	return s.SplitFn(markdown)
}
