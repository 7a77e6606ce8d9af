// Package bloom removes duplicate chunk content within an ingest run.
// Documentation sites repeat boilerplate sections across many pages;
// those chunks are embedded once.
package bloom

import (
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/cespare/xxhash/v2"
	"github.com/solracnyc/gasrag"
)

// Filter records chunk content seen so far. A Bloom filter answers most
// lookups; positives are confirmed against content hashes so unique
// content is never reported as seen. Safe for concurrent use.
type Filter struct {
	mu     sync.Mutex
	f      *bloom.BloomFilter
	hashes map[uint64]struct{}
}

// NewFilter creates a filter sized for n expected chunks with the given
// false positive rate.
func NewFilter(n uint, fpRate float64) *Filter {
	return &Filter{
		f:      bloom.NewWithEstimates(n, fpRate),
		hashes: make(map[uint64]struct{}),
	}
}

// normalize collapses whitespace so reflowed copies match.
func normalize(content string) string {
	return strings.Join(strings.Fields(content), " ")
}

// Seen reports whether content was added before, then adds it.
func (f *Filter) Seen(content string) bool {
	key := normalize(content)
	h := xxhash.Sum64String(key)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.f.TestOrAddString(key) {
		if _, ok := f.hashes[h]; ok {
			return true
		}
	}
	f.hashes[h] = struct{}{}
	return false
}

// Unique returns the chunks whose content has not been seen, in order,
// and marks their content as seen.
func (f *Filter) Unique(chunks []*gasrag.Chunk) []*gasrag.Chunk {
	out := chunks[:0:0]
	for _, c := range chunks {
		if !f.Seen(c.Content) {
			out = append(out, c)
		}
	}
	return out
}

// EstimatedCount returns the approximate number of distinct items added.
func (f *Filter) EstimatedCount() uint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint(f.f.ApproximatedSize())
}
