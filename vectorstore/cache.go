package vectorstore

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/solracnyc/gasrag"
)

// resultCache holds similarity search results for a short time. At
// capacity the oldest inserted entry is evicted; reads do not reorder.
type resultCache struct {
	mu      sync.Mutex
	entries map[string]resultEntry
	order   []string
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

type resultEntry struct {
	results   []gasrag.SearchResult
	createdAt time.Time
}

func newResultCache(maxSize int, ttl time.Duration, now func() time.Time) *resultCache {
	return &resultCache{
		entries: make(map[string]resultEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     now,
	}
}

// searchKey identifies a search by its options and the first and last
// five embedding components rounded to six decimals.
func searchKey(embedding []float32, opts gasrag.SearchOptions) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d|%g|", opts.Count, opts.Threshold)
	if len(opts.Filter) > 0 {
		// Map keys are marshaled in sorted order.
		b, _ := json.Marshal(opts.Filter)
		sb.Write(b)
	}
	sb.WriteByte('|')

	n := len(embedding)
	head := min(5, n)
	tail := max(head, n-5)
	for _, part := range [][]float32{embedding[:head], embedding[tail:]} {
		for _, x := range part {
			fmt.Fprintf(&sb, "%.6f,", math.Round(float64(x)*1e6)/1e6)
		}
		sb.WriteByte(';')
	}
	return sb.String()
}

func (c *resultCache) get(key string) ([]gasrag.SearchResult, bool) {
	if c == nil || c.maxSize <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.createdAt) >= c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		return nil, false
	}
	return e.results, true
}

func (c *resultCache) put(key string, results []gasrag.SearchResult) {
	if c == nil || c.maxSize <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.removeFromOrder(key)
	} else if len(c.entries) >= c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = resultEntry{results: results, createdAt: c.now()}
	c.order = append(c.order, key)
}

func (c *resultCache) invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]resultEntry)
	c.order = c.order[:0]
}

func (c *resultCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *resultCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
