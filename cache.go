package gasrag

import (
	"context"
	"time"
)

// CacheStats reports semantic cache effectiveness.
type CacheStats struct {
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	HitRate       float64 `json:"hitRate"`
	AvgSimilarity float64 `json:"avgSimilarity"`
	Size          int     `json:"size"`
}

// CacheSnapshotEntry is one persisted semantic cache entry.
type CacheSnapshotEntry struct {
	Key            string         `json:"key"`
	Embedding      []float32      `json:"embedding"`
	Payload        []SearchResult `json:"payload"`
	CreatedAt      time.Time      `json:"createdAt"`
	LastAccessedAt time.Time      `json:"lastAccessedAt"`
	TTL            time.Duration  `json:"ttl"`
	HitCount       int            `json:"hitCount"`
}

// CacheSnapshot is the durable form of a semantic cache.
type CacheSnapshot struct {
	Entries []CacheSnapshotEntry `json:"entries"`
	Stats   CacheStats           `json:"stats"`
	SavedAt time.Time            `json:"savedAt"`
}

// CacheSnapshotStore persists semantic cache snapshots.
type CacheSnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap *CacheSnapshot) error

	// LoadSnapshot returns ENOTFOUND if nothing was saved.
	LoadSnapshot(ctx context.Context) (*CacheSnapshot, error)
}
