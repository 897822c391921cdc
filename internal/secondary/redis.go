package secondary

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/memexlabs/memex/internal/episode"
	"github.com/memexlabs/memex/internal/errs"
	"github.com/memexlabs/memex/internal/pattern"
	"github.com/memexlabs/memex/internal/relationship"
	"github.com/memexlabs/memex/internal/store"
)

// Namespaces mirror a per-component Redis key prefixing convention
// ("<service>:<component>:*"), scoped here to memex's secondary-cache
// entity partitions.
const (
	nsEpisode      = "memex:episode:"
	nsPattern      = "memex:pattern:"
	nsHeuristic    = "memex:heuristic:"
	nsRelationship = "memex:relationship:"
	nsRelFrom      = "memex:rel_from:" // set of relationship ids per from-episode
	nsRelTo        = "memex:rel_to:"   // set of relationship ids per to-episode
	nsMetaIndex    = "memex:meta:"     // set of episode ids per (key,value)
)

// Redis is the go-redis/redis/v8-backed secondary cache store, sharing
// its capability surface with Bolt and the durable SQLite store so the
// learning engine can be parameterized over any of the three.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis wraps an existing *redis.Client. ttl of 0 means entries
// never expire from Redis's own perspective (the adaptive TTL cache
// tier handles expiry for hot in-process values; Redis here plays the
// durable-ish secondary role).
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) set(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, r.ttl).Err()
}

func (r *Redis) get(ctx context.Context, key string, out interface{}) (bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(val, out)
}

func (r *Redis) StoreEpisode(ctx context.Context, e *episode.Episode) error {
	if err := r.set(ctx, nsEpisode+e.ID, e); err != nil {
		return errs.Wrap("secondary.store_episode", errs.KindStorage, err)
	}
	for k, v := range e.Metadata {
		if err := r.client.SAdd(ctx, fmt.Sprintf("%s%s:%s", nsMetaIndex, k, v), e.ID).Err(); err != nil {
			return errs.Wrap("secondary.store_episode", errs.KindStorage, err)
		}
	}
	return nil
}

func (r *Redis) GetEpisode(ctx context.Context, id string) (*episode.Episode, error) {
	var e episode.Episode
	found, err := r.get(ctx, nsEpisode+id, &e)
	if err != nil {
		return nil, errs.Wrap("secondary.get_episode", errs.KindSerialization, err)
	}
	if !found {
		return nil, errs.Wrap("secondary.get_episode", errs.KindNotFound, errs.ErrEpisodeNotFound)
	}
	return &e, nil
}

func (r *Redis) DeleteEpisode(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, nsEpisode+id).Err(); err != nil {
		return errs.Wrap("secondary.delete_episode", errs.KindStorage, err)
	}
	return nil
}

func (r *Redis) QueryEpisodesByMetadata(ctx context.Context, key, value string) ([]string, error) {
	ids, err := r.client.SMembers(ctx, fmt.Sprintf("%s%s:%s", nsMetaIndex, key, value)).Result()
	if err != nil {
		return nil, errs.Wrap("secondary.query_episodes_by_metadata", errs.KindStorage, err)
	}
	return ids, nil
}

func (r *Redis) StorePattern(ctx context.Context, p *pattern.Pattern) error {
	if err := r.set(ctx, nsPattern+p.ID, p); err != nil {
		return errs.Wrap("secondary.store_pattern", errs.KindStorage, err)
	}
	return nil
}

func (r *Redis) GetPattern(ctx context.Context, id string) (*pattern.Pattern, error) {
	var p pattern.Pattern
	found, err := r.get(ctx, nsPattern+id, &p)
	if err != nil {
		return nil, errs.Wrap("secondary.get_pattern", errs.KindSerialization, err)
	}
	if !found {
		return nil, errs.Wrap("secondary.get_pattern", errs.KindNotFound, errs.ErrPatternNotFound)
	}
	return &p, nil
}

// QueryPatterns scans all pattern keys. Redis has no secondary index
// here; the durable store's SQL WHERE clause is the fast path, this
// tier only needs to serve hot single-id lookups reliably.
func (r *Redis) QueryPatterns(ctx context.Context, filter store.PatternFilter) ([]*pattern.Pattern, error) {
	var out []*pattern.Pattern
	iter := r.client.Scan(ctx, 0, nsPattern+"*", 0).Iterator()
	for iter.Next(ctx) {
		var p pattern.Pattern
		found, err := r.get(ctx, iter.Val(), &p)
		if err != nil || !found {
			continue
		}
		if p.SuccessRate < filter.MinSuccess {
			continue
		}
		if filter.Kind != nil && p.Kind != *filter.Kind {
			continue
		}
		out = append(out, &p)
	}
	if err := iter.Err(); err != nil {
		return nil, errs.Wrap("secondary.query_patterns", errs.KindStorage, err)
	}
	return out, nil
}

func (r *Redis) StoreHeuristic(ctx context.Context, h *pattern.Heuristic) error {
	if err := r.set(ctx, nsHeuristic+h.ID, h); err != nil {
		return errs.Wrap("secondary.store_heuristic", errs.KindStorage, err)
	}
	return nil
}

func (r *Redis) GetHeuristic(ctx context.Context, id string) (*pattern.Heuristic, error) {
	var h pattern.Heuristic
	found, err := r.get(ctx, nsHeuristic+id, &h)
	if err != nil {
		return nil, errs.Wrap("secondary.get_heuristic", errs.KindSerialization, err)
	}
	if !found {
		return nil, errs.Wrap("secondary.get_heuristic", errs.KindNotFound, errs.ErrHeuristicNotFound)
	}
	return &h, nil
}

func (r *Redis) StoreRelationship(ctx context.Context, rel relationship.Relationship) error {
	if err := r.set(ctx, nsRelationship+rel.ID, rel); err != nil {
		return errs.Wrap("secondary.store_relationship", errs.KindStorage, err)
	}
	if err := r.client.SAdd(ctx, nsRelFrom+rel.From, rel.ID).Err(); err != nil {
		return errs.Wrap("secondary.store_relationship", errs.KindStorage, err)
	}
	if err := r.client.SAdd(ctx, nsRelTo+rel.To, rel.ID).Err(); err != nil {
		return errs.Wrap("secondary.store_relationship", errs.KindStorage, err)
	}
	return nil
}

func (r *Redis) GetRelationships(ctx context.Context, episodeID string, dir store.Direction) ([]relationship.Relationship, error) {
	var ids []string
	switch dir {
	case store.DirectionOutgoing:
		out, err := r.client.SMembers(ctx, nsRelFrom+episodeID).Result()
		if err != nil {
			return nil, errs.Wrap("secondary.get_relationships", errs.KindStorage, err)
		}
		ids = out
	case store.DirectionIncoming:
		out, err := r.client.SMembers(ctx, nsRelTo+episodeID).Result()
		if err != nil {
			return nil, errs.Wrap("secondary.get_relationships", errs.KindStorage, err)
		}
		ids = out
	default:
		outFrom, err := r.client.SMembers(ctx, nsRelFrom+episodeID).Result()
		if err != nil {
			return nil, errs.Wrap("secondary.get_relationships", errs.KindStorage, err)
		}
		outTo, err := r.client.SMembers(ctx, nsRelTo+episodeID).Result()
		if err != nil {
			return nil, errs.Wrap("secondary.get_relationships", errs.KindStorage, err)
		}
		ids = append(outFrom, outTo...)
	}

	var out []relationship.Relationship
	for _, id := range ids {
		var rel relationship.Relationship
		found, err := r.get(ctx, nsRelationship+id, &rel)
		if err != nil {
			return nil, errs.Wrap("secondary.get_relationships", errs.KindSerialization, err)
		}
		if found {
			out = append(out, rel)
		}
	}
	return out, nil
}

func (r *Redis) DeleteRelationship(ctx context.Context, from, to string, t relationship.Type) error {
	ids, err := r.client.SMembers(ctx, nsRelFrom+from).Result()
	if err != nil {
		return errs.Wrap("secondary.delete_relationship", errs.KindStorage, err)
	}
	for _, id := range ids {
		var rel relationship.Relationship
		found, err := r.get(ctx, nsRelationship+id, &rel)
		if err != nil {
			return errs.Wrap("secondary.delete_relationship", errs.KindSerialization, err)
		}
		if !found || rel.To != to || rel.Type != t {
			continue
		}
		if err := r.client.SRem(ctx, nsRelFrom+from, id).Err(); err != nil {
			return errs.Wrap("secondary.delete_relationship", errs.KindStorage, err)
		}
		if err := r.client.SRem(ctx, nsRelTo+to, id).Err(); err != nil {
			return errs.Wrap("secondary.delete_relationship", errs.KindStorage, err)
		}
		if err := r.client.Del(ctx, nsRelationship+id).Err(); err != nil {
			return errs.Wrap("secondary.delete_relationship", errs.KindStorage, err)
		}
	}
	return nil
}

func (r *Redis) StorePatternsBatch(ctx context.Context, ps []*pattern.Pattern) store.BatchResult {
	return r.batch(len(ps), func(i int) error { return r.StorePattern(ctx, ps[i]) }, func(i int) string { return ps[i].ID })
}

func (r *Redis) GetPatternsBatch(ctx context.Context, ids []string) ([]*pattern.Pattern, store.BatchResult) {
	out := make([]*pattern.Pattern, len(ids))
	res := r.batch(len(ids), func(i int) error {
		p, err := r.GetPattern(ctx, ids[i])
		if err != nil {
			return err
		}
		out[i] = p
		return nil
	}, func(i int) string { return ids[i] })
	return out, res
}

func (r *Redis) UpdatePatternsBatch(ctx context.Context, ps []*pattern.Pattern) store.BatchResult {
	return r.StorePatternsBatch(ctx, ps)
}

func (r *Redis) DeletePatternsBatch(ctx context.Context, ids []string) store.BatchResult {
	return r.batch(len(ids), func(i int) error { return r.client.Del(ctx, nsPattern+ids[i]).Err() }, func(i int) string { return ids[i] })
}

// batch has no real transaction semantics in Redis without Lua/MULTI;
// per-element failures are reported but do not roll back prior
// successes, unlike the durable SQLite store's single-transaction
// guarantee. This tier is non-authoritative, so that asymmetry is
// acceptable and is recorded as a design decision.
func (r *Redis) batch(n int, op func(i int) error, idOf func(i int) string) store.BatchResult {
	res := store.BatchResult{Processed: n}
	for i := 0; i < n; i++ {
		if err := op(i); err != nil {
			res.Failed++
			if len(res.Errors) < 50 {
				res.Errors = append(res.Errors, store.BatchError{ID: idOf(i), Message: err.Error()})
			}
			continue
		}
		res.Succeeded++
	}
	return res
}

// ClearAll flushes every memex-namespaced key. Never loses durable
// data: this tier is rebuilt lazily on the next cache miss.
func (r *Redis) ClearAll(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, "memex:*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errs.Wrap("secondary.clear_all", errs.KindStorage, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return errs.Wrap("secondary.clear_all", errs.KindStorage, err)
	}
	return nil
}

var _ store.Store = (*Redis)(nil)
