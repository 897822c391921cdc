// Package ttlcache implements an adaptive-TTL in-memory value cache,
// grounded on a routing.SimpleCache idiom (hit/miss stats, size-capped
// eviction, background cleanup goroutine) generalized with a
// hashicorp/golang-lru/v2 index for O(1) bounded LRU eviction and a
// per-entry TTL that grows on hot access and shrinks on cold access.
package ttlcache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Stats holds the cache's tracked metrics.
type Stats struct {
	Hits           uint64
	Misses         uint64
	Evictions      uint64
	Expirations    uint64
	ItemCount      int
	TotalSizeBytes int64
}

func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type entry struct {
	value       interface{}
	size        int64
	insertedAt  time.Time
	lastAccess  time.Time
	accessCount int
	ttl         time.Duration
}

func (e *entry) expiresAt() time.Time { return e.insertedAt.Add(e.ttl) }

// expired reports whether e has passed its TTL as of now. A zero TTL
// means the entry never expires.
func (e *entry) expired(now time.Time) bool {
	if e.ttl == 0 {
		return false
	}
	return now.After(e.expiresAt())
}

// Config tunes adaptive TTL behavior.
type Config struct {
	MaxEntries      int
	MinTTL          time.Duration
	MaxTTL          time.Duration
	BaseTTL         time.Duration
	AdaptiveEnabled bool
	HotThreshold    int
	ColdThreshold   int
	AdaptationRate  float64 // fraction of current_ttl added/removed per adaptation
	CleanupInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxEntries:      10_000,
		MinTTL:          30 * time.Second,
		MaxTTL:          1 * time.Hour,
		BaseTTL:         5 * time.Minute,
		AdaptiveEnabled: true,
		HotThreshold:    5,
		ColdThreshold:   1,
		AdaptationRate:  0.2,
		CleanupInterval: time.Minute,
	}
}

// Cache is a size-bounded, adaptive-TTL key/value cache.
type Cache struct {
	cfg Config

	mu    sync.Mutex
	index *lru.Cache[string, *entry]
	stats Stats
}

// New creates a Cache. The LRU index caps the resident key count at
// cfg.MaxEntries, evicting least-recently-used entries on overflow.
func New(cfg Config) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultConfig().MaxEntries
	}
	c := &Cache{cfg: cfg}
	// The callback runs inside index calls that are always made with c.mu
	// held, so it does not lock c.mu itself. It fires for every removal
	// from the index, including expiry, Remove and Clear.
	idx, _ := lru.NewWithEvict[string, *entry](cfg.MaxEntries, func(_ string, e *entry) {
		c.stats.Evictions++
		c.stats.TotalSizeBytes -= e.size
	})
	c.index = idx
	return c
}

// Get retrieves value for key, reporting a miss on absence or expiry
// and lazily expiring the entry in the latter case.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.index.Get(key)
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	now := time.Now()
	if e.expired(now) {
		c.index.Remove(key)
		c.stats.Expirations++
		c.stats.Misses++
		return nil, false
	}

	e.accessCount++
	e.lastAccess = now
	if c.cfg.AdaptiveEnabled {
		c.adapt(e)
	}
	c.stats.Hits++
	return e.value, true
}

func (c *Cache) adapt(e *entry) {
	delta := time.Duration(float64(e.ttl) * c.cfg.AdaptationRate)
	switch {
	case e.accessCount >= c.cfg.HotThreshold:
		e.ttl = clampTTL(e.ttl+delta, c.cfg)
	case e.accessCount <= c.cfg.ColdThreshold:
		e.ttl = clampTTL(e.ttl-delta, c.cfg)
	}
}

// Insert stores value for key with the default TTL. Every insert counts
// as a miss, since the caller necessarily missed the cache before
// computing the value.
func (c *Cache) Insert(key string, value interface{}, size int64) {
	c.InsertTTL(key, value, size, c.cfg.BaseTTL)
}

// InsertTTL stores value for key with an explicit starting TTL, clamped
// to [MinTTL, MaxTTL]. A ttl of zero disables expiration for this entry.
func (c *Cache) InsertTTL(key string, value interface{}, size int64, ttl time.Duration) {
	ttl = clampTTL(ttl, c.cfg)
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.index.Peek(key); ok {
		c.stats.TotalSizeBytes -= old.size
	}
	now := time.Now()
	c.index.Add(key, &entry{value: value, size: size, insertedAt: now, lastAccess: now, ttl: ttl})
	c.stats.Misses++
	c.stats.TotalSizeBytes += size
	c.stats.ItemCount = c.index.Len()
}

// Remove deletes key unconditionally.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index.Remove(key)
	c.stats.ItemCount = c.index.Len()
}

// Clear empties the cache, resetting size but preserving hit/miss history.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index.Purge()
	c.stats.ItemCount = 0
	c.stats.TotalSizeBytes = 0
}

// CleanupExpired removes all currently-expired entries; it is the
// background sweep run every cleanup_interval.
func (c *Cache) CleanupExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range c.index.Keys() {
		e, ok := c.index.Peek(key)
		if ok && e.expired(now) {
			c.index.Remove(key)
			c.stats.Expirations++
		}
	}
	c.stats.ItemCount = c.index.Len()
}

// Metrics returns a snapshot of cache statistics.
func (c *Cache) Metrics() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.ItemCount = c.index.Len()
	return s
}

// clampTTL bounds ttl to [MinTTL, MaxTTL], except a zero ttl is left as
// zero: it means the entry never expires and must not be pulled up to
// MinTTL.
func clampTTL(ttl time.Duration, cfg Config) time.Duration {
	if ttl == 0 {
		return 0
	}
	if ttl < cfg.MinTTL {
		return cfg.MinTTL
	}
	if ttl > cfg.MaxTTL {
		return cfg.MaxTTL
	}
	return ttl
}
