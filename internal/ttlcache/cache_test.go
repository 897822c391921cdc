package ttlcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertCountsAsMissThenGetHits(t *testing.T) {
	c := New(DefaultConfig())
	c.Insert("k", "v", 10)
	assert.Equal(t, uint64(1), c.Metrics().Misses, "insert counts as a miss")

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
	assert.Equal(t, uint64(1), c.Metrics().Hits)
}

func TestGetMissingIsMiss(t *testing.T) {
	c := New(DefaultConfig())
	_, ok := c.Get("absent")
	assert.False(t, ok)
	assert.Equal(t, uint64(1), c.Metrics().Misses)
}

func TestExpiredEntryIsLazilyExpiredAsMiss(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinTTL = time.Millisecond
	c := New(cfg)
	c.InsertTTL("k", "v", 1, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, uint64(1), c.Metrics().Expirations)
}

func TestZeroTTLNeverExpires(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinTTL = time.Millisecond
	c := New(cfg)
	c.InsertTTL("k", "v", 1, 0)
	time.Sleep(5 * time.Millisecond)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
	assert.Equal(t, uint64(0), c.Metrics().Expirations)

	c.CleanupExpired()
	assert.Equal(t, 1, c.Metrics().ItemCount)
}

func TestTTLGrowsAfterHotThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HotThreshold = 2
	cfg.ColdThreshold = 0
	cfg.BaseTTL = time.Minute
	cfg.MaxTTL = time.Hour
	cfg.AdaptationRate = 0.5
	c := New(cfg)
	c.Insert("k", "v", 1)

	for i := 0; i < 2; i++ {
		_, _ = c.Get("k")
	}

	c.mu.Lock()
	e, _ := c.index.Get("k")
	grownTTL := e.ttl
	c.mu.Unlock()

	assert.Greater(t, grownTTL, cfg.BaseTTL)
}

func TestTTLShrinksAfterColdThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HotThreshold = 1000
	cfg.ColdThreshold = 5
	cfg.BaseTTL = time.Minute
	cfg.MinTTL = time.Second
	cfg.AdaptationRate = 0.5
	c := New(cfg)
	c.Insert("k", "v", 1)

	_, _ = c.Get("k")

	c.mu.Lock()
	e, _ := c.index.Get("k")
	shrunkTTL := e.ttl
	c.mu.Unlock()

	assert.Less(t, shrunkTTL, cfg.BaseTTL)
}

func TestAdaptiveDisabledKeepsBaseTTL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AdaptiveEnabled = false
	cfg.BaseTTL = time.Minute
	c := New(cfg)
	c.Insert("k", "v", 1)
	_, _ = c.Get("k")
	_, _ = c.Get("k")

	c.mu.Lock()
	e, _ := c.index.Get("k")
	ttl := e.ttl
	c.mu.Unlock()
	assert.Equal(t, cfg.BaseTTL, ttl)
}

func TestMaxEntriesEvictsLRU(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEntries = 2
	c := New(cfg)
	c.Insert("a", 1, 1)
	c.Insert("b", 2, 1)
	c.Insert("c", 3, 1)

	assert.LessOrEqual(t, c.Metrics().ItemCount, 2)
	assert.Equal(t, uint64(1), c.Metrics().Evictions)
}

func TestClearResetsSizeButKeepsHistory(t *testing.T) {
	c := New(DefaultConfig())
	c.Insert("a", 1, 4)
	_, _ = c.Get("a")
	c.Clear()
	assert.Equal(t, 0, c.Metrics().ItemCount)
	assert.Equal(t, int64(0), c.Metrics().TotalSizeBytes)
	assert.Equal(t, uint64(1), c.Metrics().Hits)
}

func TestCleanupExpiredRemovesExpiredEntries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinTTL = time.Millisecond
	c := New(cfg)
	c.InsertTTL("a", 1, 1, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	c.CleanupExpired()
	assert.Equal(t, 0, c.Metrics().ItemCount)
	assert.Equal(t, uint64(1), c.Metrics().Expirations)
}

func TestHitRateComputation(t *testing.T) {
	s := Stats{Hits: 3, Misses: 1}
	assert.InDelta(t, 0.75, s.HitRate(), 1e-9)
}

func TestRemoveDeletesKey(t *testing.T) {
	c := New(DefaultConfig())
	c.Insert("a", 1, 1)
	c.Remove("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
}
