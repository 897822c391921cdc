// Package stmtcache implements a connection-scoped prepared-statement
// cache: statements are keyed by (connection_id, SQL), each connection
// has its own bounded LRU, and the set of tracked connections is
// itself LRU-evicted once max_connections is exceeded. Grounded on a
// core.SchemaCache idiom (atomic hit/miss counters, Stats() snapshot,
// options pattern) generalized from a single global Redis-backed map
// to a per-connection hashicorp/golang-lru/v2 index.
package stmtcache

import (
	"database/sql"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Stats is a snapshot of cache-wide statistics.
type Stats struct {
	Hits               uint64
	Misses             uint64
	Evictions          uint64
	ConnectionEvictions uint64
	Prepared           uint64
	PreparationTimeUs  uint64
	ActiveConnections  int
	CurrentSize        int
	MaxSize            int
	MaxSizeReached     bool
}

func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

func (s Stats) AveragePreparationTimeUs() float64 {
	if s.Prepared == 0 {
		return 0
	}
	return float64(s.PreparationTimeUs) / float64(s.Prepared)
}

// Preparer is the subset of *sql.DB/*sql.Conn the cache needs, so tests
// can substitute a fake.
type Preparer interface {
	Prepare(query string) (*sql.Stmt, error)
}

type connEntry struct {
	mu           sync.Mutex
	stmts        *lru.Cache[string, *sql.Stmt]
	lastAccessed time.Time
}

// Cache is the connection-scoped prepared-statement cache.
type Cache struct {
	maxSize        int
	maxConnections int

	mu          sync.Mutex
	conns       *lru.Cache[string, *connEntry]
	evictedStmt uint64 // accumulates stmt evictions fired by per-conn LRUs

	hits, misses, prepared, prepUs, connEvictions uint64
}

// New creates a Cache. maxSize bounds each connection's statement LRU;
// maxConnections bounds the number of tracked connections.
func New(maxSize, maxConnections int) *Cache {
	c := &Cache{maxSize: maxSize, maxConnections: maxConnections}
	conns, _ := lru.NewWithEvict[string, *connEntry](maxConnections, func(_ string, e *connEntry) {
		atomic.AddUint64(&c.connEvictions, 1)
		e.mu.Lock()
		e.stmts.Purge()
		e.mu.Unlock()
	})
	c.conns = conns
	return c
}

func (c *Cache) entryFor(connID string) *connEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.conns.Get(connID); ok {
		e.lastAccessed = time.Now()
		return e
	}
	e := &connEntry{lastAccessed: time.Now()}
	stmts, _ := lru.NewWithEvict[string, *sql.Stmt](c.maxSize, func(_ string, stmt *sql.Stmt) {
		atomic.AddUint64(&c.evictedStmt, 1)
		_ = stmt.Close()
	})
	e.stmts = stmts
	c.conns.Add(connID, e)
	return e
}

// Prepare returns a cached *sql.Stmt for (connID, query), preparing and
// caching it via p on a miss.
func (c *Cache) Prepare(p Preparer, connID, query string) (*sql.Stmt, error) {
	e := c.entryFor(connID)

	e.mu.Lock()
	if stmt, ok := e.stmts.Get(query); ok {
		e.mu.Unlock()
		atomic.AddUint64(&c.hits, 1)
		return stmt, nil
	}
	e.mu.Unlock()

	atomic.AddUint64(&c.misses, 1)
	start := time.Now()
	stmt, err := p.Prepare(query)
	if err != nil {
		return nil, err
	}
	atomic.AddUint64(&c.prepUs, uint64(time.Since(start).Microseconds()))
	atomic.AddUint64(&c.prepared, 1)

	e.mu.Lock()
	e.stmts.Add(query, stmt)
	e.mu.Unlock()
	return stmt, nil
}

// ClearConnection removes all cached statements for one connection.
func (c *Cache) ClearConnection(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.conns.Get(connID); ok {
		e.mu.Lock()
		e.stmts.Purge()
		e.mu.Unlock()
		c.conns.Remove(connID)
	}
}

// CleanupIdleConnections removes connections idle longer than d.
func (c *Cache) CleanupIdleConnections(d time.Duration) {
	cutoff := time.Now().Add(-d)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, connID := range c.conns.Keys() {
		e, ok := c.conns.Peek(connID)
		if !ok {
			continue
		}
		e.mu.Lock()
		idle := e.lastAccessed.Before(cutoff)
		e.mu.Unlock()
		if idle {
			e.stmts.Purge()
			c.conns.Remove(connID)
		}
	}
}

// Stats returns a snapshot of cache-wide statistics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	active := c.conns.Len()
	currentSize := 0
	for _, connID := range c.conns.Keys() {
		if e, ok := c.conns.Peek(connID); ok {
			currentSize += e.stmts.Len()
		}
	}
	c.mu.Unlock()

	return Stats{
		Hits:                atomic.LoadUint64(&c.hits),
		Misses:              atomic.LoadUint64(&c.misses),
		Evictions:           atomic.LoadUint64(&c.evictedStmt),
		ConnectionEvictions: atomic.LoadUint64(&c.connEvictions),
		Prepared:            atomic.LoadUint64(&c.prepared),
		PreparationTimeUs:   atomic.LoadUint64(&c.prepUs),
		ActiveConnections:   active,
		CurrentSize:         currentSize,
		MaxSize:             c.maxSize,
		MaxSizeReached:      active >= c.maxConnections,
	}
}
