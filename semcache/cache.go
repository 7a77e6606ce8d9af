// Package semcache caches search payloads by query embedding. A lookup
// hits when a cached embedding is similar enough to the query, so
// paraphrased questions reuse earlier results.
package semcache

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/solracnyc/gasrag"
)

// Config holds the tunable limits of a Cache.
type Config struct {
	// Threshold is the minimum cosine similarity for a hit.
	Threshold float64 `yaml:"threshold"`

	// MaxEntries bounds the cache; the least recently accessed entry is
	// evicted first.
	MaxEntries int `yaml:"max_entries"`

	// DefaultTTL applies when Set is called with a zero ttl.
	DefaultTTL time.Duration `yaml:"default_ttl"`

	// SweepInterval is how often Start removes expired entries.
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// MaxSnapshotAge discards persisted entries older than this on Load.
	MaxSnapshotAge time.Duration `yaml:"max_snapshot_age"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:      0.95,
		MaxEntries:     1000,
		DefaultTTL:     time.Hour,
		SweepInterval:  time.Minute,
		MaxSnapshotAge: 24 * time.Hour,
	}
}

type entry struct {
	key          string
	embedding    []float32
	norm         float64
	payload      []gasrag.SearchResult
	createdAt    time.Time
	lastAccessed time.Time
	ttl          time.Duration
	hitCount     int
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) >= e.ttl
}

// Cache is a semantic cache safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	cfg     Config
	entries map[string]*entry

	hits, misses int64
	simSum       float64

	// Now returns the current time.
	Now func() time.Time

	Logger *slog.Logger
}

// New returns an empty Cache.
func New(cfg Config) *Cache {
	return &Cache{
		cfg:     cfg,
		entries: make(map[string]*entry),
		Now:     time.Now,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Key returns the cache key of an embedding.
func Key(embedding []float32) string {
	b := make([]byte, 4*len(embedding))
	for i, x := range embedding {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(x))
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(b))
}

// Get returns the payload of the unexpired entry most similar to
// embedding, provided its similarity reaches the threshold.
func (c *Cache) Get(embedding []float32) ([]gasrag.SearchResult, float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.Now()
	norm := gasrag.L2Norm(embedding)

	var (
		best    *entry
		bestSim = math.Inf(-1)
	)
	for _, e := range c.entries {
		if e.expired(now) || len(e.embedding) != len(embedding) {
			continue
		}
		sim := gasrag.CosineSimilarityWithNorms(embedding, e.embedding, norm, e.norm)
		if sim > bestSim {
			best, bestSim = e, sim
		}
	}

	if best == nil || bestSim < c.cfg.Threshold {
		c.misses++
		return nil, 0, false
	}

	best.lastAccessed = now
	best.hitCount++
	c.hits++
	c.simSum += bestSim
	return best.payload, bestSim, true
}

// Set stores payload under embedding, evicting the least recently
// accessed entry when full. A zero ttl uses DefaultTTL.
func (c *Cache) Set(embedding []float32, payload []gasrag.SearchResult, ttl time.Duration) string {
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}
	key := Key(embedding)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.cfg.MaxEntries > 0 && len(c.entries) >= c.cfg.MaxEntries {
		c.evictLRU()
	}

	now := c.Now()
	c.entries[key] = &entry{
		key:          key,
		embedding:    append([]float32(nil), embedding...),
		norm:         gasrag.L2Norm(embedding),
		payload:      payload,
		createdAt:    now,
		lastAccessed: now,
		ttl:          ttl,
	}
	return key
}

func (c *Cache) evictLRU() {
	var oldest *entry
	for _, e := range c.entries {
		if oldest == nil || e.lastAccessed.Before(oldest.lastAccessed) {
			oldest = e
		}
	}
	if oldest != nil {
		delete(c.entries, oldest.key)
	}
}

// Sweep removes expired entries and returns how many were removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweep(c.Now())
}

func (c *Cache) sweep(now time.Time) int {
	removed := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Start sweeps expired entries every SweepInterval until ctx is done.
func (c *Cache) Start(ctx context.Context) {
	interval := c.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := c.Sweep(); n > 0 {
					c.Logger.Debug("semantic cache sweep", "removed", n)
				}
			}
		}
	}()
}

// Clear removes every entry and resets statistics.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.hits, c.misses, c.simSum = 0, 0, 0
}

// Stats returns hit statistics and the current size.
func (c *Cache) Stats() gasrag.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats()
}

func (c *Cache) stats() gasrag.CacheStats {
	s := gasrag.CacheStats{Hits: c.hits, Misses: c.misses, Size: len(c.entries)}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	if c.hits > 0 {
		s.AvgSimilarity = c.simSum / float64(c.hits)
	}
	return s
}

// Save writes a snapshot of the cache to store.
func (c *Cache) Save(ctx context.Context, store gasrag.CacheSnapshotStore) error {
	c.mu.Lock()
	snap := &gasrag.CacheSnapshot{
		Entries: make([]gasrag.CacheSnapshotEntry, 0, len(c.entries)),
		Stats:   c.stats(),
		SavedAt: c.Now().UTC(),
	}
	for _, e := range c.entries {
		snap.Entries = append(snap.Entries, gasrag.CacheSnapshotEntry{
			Key:            e.key,
			Embedding:      e.embedding,
			Payload:        e.payload,
			CreatedAt:      e.createdAt,
			LastAccessedAt: e.lastAccessed,
			TTL:            e.ttl,
			HitCount:       e.hitCount,
		})
	}
	c.mu.Unlock()

	return store.SaveSnapshot(ctx, snap)
}

// Load replaces the cache contents with the snapshot in store. Entries
// older than MaxSnapshotAge are discarded, then expired entries are swept.
// A missing snapshot leaves the cache empty without error.
func (c *Cache) Load(ctx context.Context, store gasrag.CacheSnapshotStore) error {
	snap, err := store.LoadSnapshot(ctx)
	if gasrag.ErrorCode(err) == gasrag.ENOTFOUND {
		return nil
	} else if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.Now()
	c.entries = make(map[string]*entry, len(snap.Entries))
	for _, se := range snap.Entries {
		if c.cfg.MaxSnapshotAge > 0 && now.Sub(se.CreatedAt) > c.cfg.MaxSnapshotAge {
			continue
		}
		key := se.Key
		if key == "" {
			key = Key(se.Embedding)
		}
		c.entries[key] = &entry{
			key:          key,
			embedding:    se.Embedding,
			norm:         gasrag.L2Norm(se.Embedding),
			payload:      se.Payload,
			createdAt:    se.CreatedAt,
			lastAccessed: se.LastAccessedAt,
			ttl:          se.TTL,
			hitCount:     se.HitCount,
		}
	}
	c.hits, c.misses = snap.Stats.Hits, snap.Stats.Misses
	c.simSum = snap.Stats.AvgSimilarity * float64(snap.Stats.Hits)

	removed := c.sweep(now)
	for c.cfg.MaxEntries > 0 && len(c.entries) > c.cfg.MaxEntries {
		c.evictLRU()
	}
	c.Logger.Info("semantic cache loaded", "entries", len(c.entries), "expired", removed)
	return nil
}
