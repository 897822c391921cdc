// Package ratelimit implements a per-client, per-operation-kind
// token-bucket rate limiter protecting external-facing read/write
// operations, grounded on a telemetry.RateLimiter idiom (same
// lock-per-bucket shape) generalized to a capacity/refill-rate bucket.
package ratelimit

import (
	"sync"
	"time"
)

// Op is the operation kind a bucket is scoped to.
type Op string

const (
	Read  Op = "read"
	Write Op = "write"
)

// bucket holds token-bucket state for one (client, op) pair.
type bucket struct {
	mu           sync.Mutex
	tokens       float64
	capacity     float64
	refillRate   float64 // tokens per second
	lastRefill   time.Time
	lastAccessed time.Time
}

func (b *bucket) refillLocked(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.lastRefill = now
	}
}

// tryConsume attempts to deduct n tokens, refilling first.
func (b *bucket) tryConsume(n float64, now time.Time) (allowed bool, remaining float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(now)
	b.lastAccessed = now
	if b.tokens >= n {
		b.tokens -= n
		return true, b.tokens
	}
	return false, b.tokens
}

// Config configures capacity and refill rate per operation kind.
type Config struct {
	Enabled         bool
	ReadCapacity    float64
	ReadRefillRate  float64
	WriteCapacity   float64
	WriteRefillRate float64
	CleanupInterval time.Duration
}

// DefaultConfig provides sane per-client defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		ReadCapacity:    100,
		ReadRefillRate:  50,
		WriteCapacity:   20,
		WriteRefillRate: 5,
		CleanupInterval: 10 * time.Minute,
	}
}

// Result is returned by CheckRateLimit.
type Result struct {
	Allowed    bool
	Remaining  float64
	ResetAfter time.Duration
	Limit      float64
	RetryAfter *time.Duration // advisory only
}

// Limiter is a per-client, per-operation-kind token-bucket rate limiter.
type Limiter struct {
	cfg Config

	mu      sync.Mutex
	buckets map[string]map[Op]*bucket
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	return &Limiter{cfg: cfg, buckets: map[string]map[Op]*bucket{}}
}

func (l *Limiter) getBucket(client string, op Op) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	ops, ok := l.buckets[client]
	if !ok {
		ops = map[Op]*bucket{}
		l.buckets[client] = ops
	}
	b, ok := ops[op]
	if !ok {
		capacity, rate := l.limitsFor(op)
		b = &bucket{tokens: capacity, capacity: capacity, refillRate: rate, lastRefill: time.Now(), lastAccessed: time.Now()}
		ops[op] = b
	}
	return b
}

func (l *Limiter) limitsFor(op Op) (capacity, rate float64) {
	if op == Write {
		return l.cfg.WriteCapacity, l.cfg.WriteRefillRate
	}
	return l.cfg.ReadCapacity, l.cfg.ReadRefillRate
}

// TryConsume attempts to deduct n tokens from client's op bucket.
func (l *Limiter) TryConsume(client string, op Op, n float64) (allowed bool, remaining float64) {
	if !l.cfg.Enabled {
		return true, 0
	}
	return l.getBucket(client, op).tryConsume(n, time.Now())
}

// CheckRateLimit reports the outcome of consuming a single token, along
// with the response metadata used for X-RateLimit-* headers.
func (l *Limiter) CheckRateLimit(client string, op Op) Result {
	capacity, rate := l.limitsFor(op)
	if !l.cfg.Enabled {
		return Result{Allowed: true, Remaining: capacity, Limit: capacity}
	}
	allowed, remaining := l.TryConsume(client, op, 1)
	res := Result{Allowed: allowed, Remaining: remaining, Limit: capacity}
	if rate > 0 {
		res.ResetAfter = time.Duration(float64(time.Second) * (capacity - remaining) / rate)
	}
	if !allowed {
		retry := time.Duration(float64(time.Second) / rate)
		res.RetryAfter = &retry
	}
	return res
}

// CleanupStale drops buckets not accessed within the configured cleanup
// interval. Buckets are never removed on access; this explicit sweep
// is the only cleanup.
func (l *Limiter) CleanupStale() {
	cutoff := time.Now().Add(-l.cfg.CleanupInterval)
	l.mu.Lock()
	defer l.mu.Unlock()
	for client, ops := range l.buckets {
		for op, b := range ops {
			b.mu.Lock()
			stale := b.lastAccessed.Before(cutoff)
			b.mu.Unlock()
			if stale {
				delete(ops, op)
			}
		}
		if len(ops) == 0 {
			delete(l.buckets, client)
		}
	}
}
