package semcache_test

import (
	"context"
	"testing"
	"time"

	"github.com/solracnyc/gasrag"
	"github.com/solracnyc/gasrag/mock"
	"github.com/solracnyc/gasrag/semcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embedding(values ...float32) []float32 {
	v := make([]float32, 8)
	copy(v, values)
	return v
}

func payload(id string) []gasrag.SearchResult {
	return []gasrag.SearchResult{{ID: id, Content: "content " + id}}
}

func newCache(cfg semcache.Config) (*semcache.Cache, *time.Time) {
	c := semcache.New(cfg)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	c.Now = func() time.Time { return now }
	return c, &now
}

func TestCache_GetSet(t *testing.T) {
	t.Parallel()

	t.Run("exact embedding hits", func(t *testing.T) {
		t.Parallel()

		c, _ := newCache(semcache.DefaultConfig())
		c.Set(embedding(1, 2, 3), payload("a"), time.Minute)

		got, sim, ok := c.Get(embedding(1, 2, 3))

		require.True(t, ok)
		assert.Equal(t, payload("a"), got)
		assert.InDelta(t, 1.0, sim, 1e-6)
	})

	t.Run("similar embedding above threshold hits", func(t *testing.T) {
		t.Parallel()

		c, _ := newCache(semcache.DefaultConfig())
		c.Set(embedding(1, 0, 0), payload("a"), time.Minute)

		_, sim, ok := c.Get(embedding(1, 0.1, 0))

		require.True(t, ok)
		assert.Greater(t, sim, 0.95)
	})

	t.Run("dissimilar embedding misses", func(t *testing.T) {
		t.Parallel()

		c, _ := newCache(semcache.DefaultConfig())
		c.Set(embedding(1, 0, 0), payload("a"), time.Minute)

		_, _, ok := c.Get(embedding(0, 1, 0))

		assert.False(t, ok)
	})

	t.Run("returns best match", func(t *testing.T) {
		t.Parallel()

		c, _ := newCache(semcache.DefaultConfig())
		c.Set(embedding(1, 0.2, 0), payload("near"), time.Minute)
		c.Set(embedding(1, 0, 0), payload("exact"), time.Minute)

		got, _, ok := c.Get(embedding(1, 0, 0))

		require.True(t, ok)
		assert.Equal(t, "exact", got[0].ID)
	})

	t.Run("misses after ttl", func(t *testing.T) {
		t.Parallel()

		c, now := newCache(semcache.DefaultConfig())
		c.Set(embedding(1), payload("a"), time.Minute)

		*now = now.Add(time.Minute)
		_, _, ok := c.Get(embedding(1))

		assert.False(t, ok)
	})

	t.Run("evicts least recently accessed at capacity", func(t *testing.T) {
		t.Parallel()

		cfg := semcache.DefaultConfig()
		cfg.MaxEntries = 2
		c, now := newCache(cfg)

		c.Set(embedding(1), payload("a"), time.Hour)
		*now = now.Add(time.Second)
		c.Set(embedding(0, 1), payload("b"), time.Hour)
		*now = now.Add(time.Second)
		_, _, ok := c.Get(embedding(1))
		require.True(t, ok)
		*now = now.Add(time.Second)
		c.Set(embedding(0, 0, 1), payload("c"), time.Hour)

		_, _, okA := c.Get(embedding(1))
		_, _, okB := c.Get(embedding(0, 1))
		_, _, okC := c.Get(embedding(0, 0, 1))
		assert.True(t, okA)
		assert.False(t, okB)
		assert.True(t, okC)
		assert.Equal(t, 2, c.Stats().Size)
	})
}

func TestCache_Stats(t *testing.T) {
	t.Parallel()

	c, _ := newCache(semcache.DefaultConfig())
	c.Set(embedding(1), payload("a"), time.Minute)

	c.Get(embedding(1))
	c.Get(embedding(1))
	c.Get(embedding(0, 1))

	s := c.Stats()
	assert.Equal(t, int64(2), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.InDelta(t, 2.0/3.0, s.HitRate, 1e-9)
	assert.InDelta(t, 1.0, s.AvgSimilarity, 1e-6)
	assert.Equal(t, 1, s.Size)

	c.Clear()
	assert.Equal(t, gasrag.CacheStats{}, c.Stats())
}

func TestCache_Sweep(t *testing.T) {
	t.Parallel()

	c, now := newCache(semcache.DefaultConfig())
	c.Set(embedding(1), payload("short"), time.Minute)
	c.Set(embedding(0, 1), payload("long"), time.Hour)

	*now = now.Add(2 * time.Minute)

	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Stats().Size)
}

func TestCache_Start(t *testing.T) {
	t.Parallel()

	cfg := semcache.DefaultConfig()
	cfg.SweepInterval = 5 * time.Millisecond
	c := semcache.New(cfg)
	c.Set(embedding(1), payload("a"), time.Nanosecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	assert.Eventually(t, func() bool { return c.Stats().Size == 0 }, time.Second, 5*time.Millisecond)
}

func TestCache_Persistence(t *testing.T) {
	t.Parallel()

	t.Run("round trips through snapshot store", func(t *testing.T) {
		t.Parallel()

		var saved *gasrag.CacheSnapshot
		store := &mock.CacheSnapshotStore{
			SaveSnapshotFn: func(_ context.Context, snap *gasrag.CacheSnapshot) error {
				saved = snap
				return nil
			},
			LoadSnapshotFn: func(context.Context) (*gasrag.CacheSnapshot, error) {
				return saved, nil
			},
		}

		c, now := newCache(semcache.DefaultConfig())
		c.Set(embedding(1), payload("a"), time.Hour)
		c.Get(embedding(1))
		require.NoError(t, c.Save(context.Background(), store))
		require.Len(t, saved.Entries, 1)

		restored := semcache.New(semcache.DefaultConfig())
		restored.Now = func() time.Time { return now.Add(10 * time.Minute) }
		require.NoError(t, restored.Load(context.Background(), store))

		got, _, ok := restored.Get(embedding(1))
		require.True(t, ok)
		assert.Equal(t, payload("a"), got)
		assert.Equal(t, int64(2), restored.Stats().Hits)
	})

	t.Run("discards entries older than a day", func(t *testing.T) {
		t.Parallel()

		now := time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)
		store := &mock.CacheSnapshotStore{
			LoadSnapshotFn: func(context.Context) (*gasrag.CacheSnapshot, error) {
				return &gasrag.CacheSnapshot{Entries: []gasrag.CacheSnapshotEntry{
					{Embedding: embedding(1), Payload: payload("old"), CreatedAt: now.Add(-25 * time.Hour), TTL: 48 * time.Hour},
					{Embedding: embedding(0, 1), Payload: payload("fresh"), CreatedAt: now.Add(-time.Hour), TTL: 48 * time.Hour},
					{Embedding: embedding(0, 0, 1), Payload: payload("expired"), CreatedAt: now.Add(-2 * time.Hour), TTL: time.Hour},
				}}, nil
			},
		}

		c := semcache.New(semcache.DefaultConfig())
		c.Now = func() time.Time { return now }
		require.NoError(t, c.Load(context.Background(), store))

		assert.Equal(t, 1, c.Stats().Size)
		got, _, ok := c.Get(embedding(0, 1))
		require.True(t, ok)
		assert.Equal(t, "fresh", got[0].ID)
	})

	t.Run("missing snapshot is not an error", func(t *testing.T) {
		t.Parallel()

		store := &mock.CacheSnapshotStore{
			LoadSnapshotFn: func(context.Context) (*gasrag.CacheSnapshot, error) {
				return nil, gasrag.Errorf(gasrag.ENOTFOUND, "no snapshot")
			},
		}

		require.NoError(t, semcache.New(semcache.DefaultConfig()).Load(context.Background(), store))
	})
}
