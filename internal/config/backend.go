package config

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/memexlabs/memex/internal/engine"
	"github.com/memexlabs/memex/internal/secondary"
	"github.com/memexlabs/memex/internal/store"
)

// OpenDurable resolves and opens the durable store façade per the
// "Durable Store Façade — backend selection" rule: a Turso URL selects a
// remote libsql-shaped DSN passed straight through to the façade (no
// separate network client is wired in; the façade's modernc.org/sqlite
// driver accepts the DSN as-is, so a future libsql-aware driver can be
// substituted behind the same store.Store interface without callers
// changing). Otherwise RedbPath (or ":memory:") opens the local file or
// in-memory backend.
func (c *Config) OpenDurable(ctx context.Context) (store.Store, error) {
	if c.Database.TursoURL != "" {
		return store.Open(ctx, c.Database.TursoURL)
	}
	path := c.Database.RedbPath
	if path == "" {
		path = ":memory:"
	}
	return store.Open(ctx, path)
}

// OpenSecondary resolves and opens the secondary cache tier: a configured
// Redis URL selects a go-redis-backed cache, otherwise an embedded bbolt
// file (co-located with the durable store) is used, per the "Secondary
// Cache Store — backend selection" rule.
func (c *Config) OpenSecondary(boltPath string) (engine.SecondaryStore, error) {
	ttl := time.Duration(c.Storage.CacheTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	if c.Storage.RedisURL != "" {
		opt, err := redis.ParseURL(c.Storage.RedisURL)
		if err != nil {
			return nil, err
		}
		client := redis.NewClient(opt)
		return secondary.NewRedis(client, ttl), nil
	}

	return secondary.OpenBolt(boltPath)
}
