// Package secondary implements a secondary cache store: the same
// capability surface as the durable store, plus clear_all, backed by
// an embedded, process-local, crash-safe key/value store partitioned
// into per-entity buckets. Grounded on a bolt.DB wrapper idiom
// (CreateBucket/PutJSON/GetJSON/Delete) generalized to the full Store
// capability set using go.etcd.io/bbolt directly.
package secondary

import (
	"context"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/memexlabs/memex/internal/episode"
	"github.com/memexlabs/memex/internal/errs"
	"github.com/memexlabs/memex/internal/pattern"
	"github.com/memexlabs/memex/internal/relationship"
	"github.com/memexlabs/memex/internal/store"
)

var (
	bucketEpisodes      = []byte("episodes")
	bucketPatterns      = []byte("patterns")
	bucketHeuristics    = []byte("heuristics")
	bucketRelationships = []byte("relationships")
)

var allBuckets = [][]byte{bucketEpisodes, bucketPatterns, bucketHeuristics, bucketRelationships}

// Bolt is the bbolt-backed embedded secondary cache store.
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens or creates a bbolt database at path and ensures every
// per-entity bucket exists.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errs.Wrap("secondary.open", errs.KindStorage, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap("secondary.open", errs.KindStorage, err)
	}
	return &Bolt{db: db}, nil
}

func (b *Bolt) Close() error { return b.db.Close() }

func putJSON(tx *bolt.Tx, bucket []byte, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return tx.Bucket(bucket).Put([]byte(key), data)
}

func getJSON(tx *bolt.Tx, bucket []byte, key string, out interface{}) (bool, error) {
	data := tx.Bucket(bucket).Get([]byte(key))
	if data == nil {
		return false, nil
	}
	return true, json.Unmarshal(data, out)
}

func (b *Bolt) StoreEpisode(ctx context.Context, e *episode.Episode) error {
	err := b.db.Update(func(tx *bolt.Tx) error { return putJSON(tx, bucketEpisodes, e.ID, e) })
	if err != nil {
		return errs.Wrap("secondary.store_episode", errs.KindStorage, err)
	}
	return nil
}

func (b *Bolt) GetEpisode(ctx context.Context, id string) (*episode.Episode, error) {
	var e episode.Episode
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		var err error
		found, err = getJSON(tx, bucketEpisodes, id, &e)
		return err
	})
	if err != nil {
		return nil, errs.Wrap("secondary.get_episode", errs.KindSerialization, err)
	}
	if !found {
		return nil, errs.Wrap("secondary.get_episode", errs.KindNotFound, errs.ErrEpisodeNotFound)
	}
	return &e, nil
}

func (b *Bolt) DeleteEpisode(ctx context.Context, id string) error {
	err := b.db.Update(func(tx *bolt.Tx) error { return tx.Bucket(bucketEpisodes).Delete([]byte(id)) })
	if err != nil {
		return errs.Wrap("secondary.delete_episode", errs.KindStorage, err)
	}
	return nil
}

// QueryEpisodesByMetadata performs a linear scan: the secondary cache
// has no metadata index, unlike the durable store's indexed table.
func (b *Bolt) QueryEpisodesByMetadata(ctx context.Context, key, value string) ([]string, error) {
	var ids []string
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEpisodes).ForEach(func(k, v []byte) error {
			var e episode.Episode
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if e.Metadata[key] == value {
				ids = append(ids, e.ID)
			}
			return nil
		})
	})
	if err != nil {
		return nil, errs.Wrap("secondary.query_episodes_by_metadata", errs.KindStorage, err)
	}
	return ids, nil
}

func (b *Bolt) StorePattern(ctx context.Context, p *pattern.Pattern) error {
	err := b.db.Update(func(tx *bolt.Tx) error { return putJSON(tx, bucketPatterns, p.ID, p) })
	if err != nil {
		return errs.Wrap("secondary.store_pattern", errs.KindStorage, err)
	}
	return nil
}

func (b *Bolt) GetPattern(ctx context.Context, id string) (*pattern.Pattern, error) {
	var p pattern.Pattern
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		var err error
		found, err = getJSON(tx, bucketPatterns, id, &p)
		return err
	})
	if err != nil {
		return nil, errs.Wrap("secondary.get_pattern", errs.KindSerialization, err)
	}
	if !found {
		return nil, errs.Wrap("secondary.get_pattern", errs.KindNotFound, errs.ErrPatternNotFound)
	}
	return &p, nil
}

func (b *Bolt) QueryPatterns(ctx context.Context, filter store.PatternFilter) ([]*pattern.Pattern, error) {
	var out []*pattern.Pattern
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPatterns).ForEach(func(k, v []byte) error {
			var p pattern.Pattern
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			if p.SuccessRate < filter.MinSuccess {
				return nil
			}
			if filter.Kind != nil && p.Kind != *filter.Kind {
				return nil
			}
			out = append(out, &p)
			return nil
		})
	})
	if err != nil {
		return nil, errs.Wrap("secondary.query_patterns", errs.KindStorage, err)
	}
	return out, nil
}

func (b *Bolt) StoreHeuristic(ctx context.Context, h *pattern.Heuristic) error {
	err := b.db.Update(func(tx *bolt.Tx) error { return putJSON(tx, bucketHeuristics, h.ID, h) })
	if err != nil {
		return errs.Wrap("secondary.store_heuristic", errs.KindStorage, err)
	}
	return nil
}

func (b *Bolt) GetHeuristic(ctx context.Context, id string) (*pattern.Heuristic, error) {
	var h pattern.Heuristic
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		var err error
		found, err = getJSON(tx, bucketHeuristics, id, &h)
		return err
	})
	if err != nil {
		return nil, errs.Wrap("secondary.get_heuristic", errs.KindSerialization, err)
	}
	if !found {
		return nil, errs.Wrap("secondary.get_heuristic", errs.KindNotFound, errs.ErrHeuristicNotFound)
	}
	return &h, nil
}

func (b *Bolt) StoreRelationship(ctx context.Context, r relationship.Relationship) error {
	err := b.db.Update(func(tx *bolt.Tx) error { return putJSON(tx, bucketRelationships, r.ID, r) })
	if err != nil {
		return errs.Wrap("secondary.store_relationship", errs.KindStorage, err)
	}
	return nil
}

func (b *Bolt) GetRelationships(ctx context.Context, episodeID string, dir store.Direction) ([]relationship.Relationship, error) {
	var out []relationship.Relationship
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRelationships).ForEach(func(k, v []byte) error {
			var r relationship.Relationship
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			switch dir {
			case store.DirectionOutgoing:
				if r.From == episodeID {
					out = append(out, r)
				}
			case store.DirectionIncoming:
				if r.To == episodeID {
					out = append(out, r)
				}
			default:
				if r.From == episodeID || r.To == episodeID {
					out = append(out, r)
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, errs.Wrap("secondary.get_relationships", errs.KindStorage, err)
	}
	return out, nil
}

func (b *Bolt) DeleteRelationship(ctx context.Context, from, to string, t relationship.Type) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketRelationships)
		var toDelete [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			var r relationship.Relationship
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			if r.From == from && r.To == to && r.Type == t {
				toDelete = append(toDelete, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range toDelete {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errs.Wrap("secondary.delete_relationship", errs.KindStorage, err)
	}
	return nil
}

func (b *Bolt) StorePatternsBatch(ctx context.Context, ps []*pattern.Pattern) store.BatchResult {
	return b.batch(len(ps), func(tx *bolt.Tx, i int) error { return putJSON(tx, bucketPatterns, ps[i].ID, ps[i]) }, func(i int) string { return ps[i].ID })
}

func (b *Bolt) GetPatternsBatch(ctx context.Context, ids []string) ([]*pattern.Pattern, store.BatchResult) {
	out := make([]*pattern.Pattern, len(ids))
	res := b.batch(len(ids), func(tx *bolt.Tx, i int) error {
		var p pattern.Pattern
		found, err := getJSON(tx, bucketPatterns, ids[i], &p)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("not found: %s", ids[i])
		}
		out[i] = &p
		return nil
	}, func(i int) string { return ids[i] })
	return out, res
}

func (b *Bolt) UpdatePatternsBatch(ctx context.Context, ps []*pattern.Pattern) store.BatchResult {
	return b.StorePatternsBatch(ctx, ps)
}

func (b *Bolt) DeletePatternsBatch(ctx context.Context, ids []string) store.BatchResult {
	return b.batch(len(ids), func(tx *bolt.Tx, i int) error { return tx.Bucket(bucketPatterns).Delete([]byte(ids[i])) }, func(i int) string { return ids[i] })
}

func (b *Bolt) batch(n int, op func(tx *bolt.Tx, i int) error, idOf func(i int) string) store.BatchResult {
	res := store.BatchResult{Processed: n}
	err := b.db.Update(func(tx *bolt.Tx) error {
		for i := 0; i < n; i++ {
			if err := op(tx, i); err != nil {
				res.Failed = n
				if len(res.Errors) < 50 {
					res.Errors = append(res.Errors, store.BatchError{ID: idOf(i), Message: err.Error()})
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return res
	}
	res.Succeeded = n
	return res
}

// ClearAll empties every bucket. Clearing the secondary cache never
// loses data: it is rebuilt lazily from the durable store on the next
// miss.
func (b *Bolt) ClearAll(ctx context.Context) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if err := tx.DeleteBucket(name); err != nil && err != bolt.ErrBucketNotFound {
				return err
			}
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errs.Wrap("secondary.clear_all", errs.KindStorage, err)
	}
	return nil
}

var _ store.Store = (*Bolt)(nil)
