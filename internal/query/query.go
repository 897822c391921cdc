// Package query implements a hierarchical retrieval engine: a
// four-signal relevance score (domain match, task_type match,
// temporal proximity, text similarity) evaluated over the episodes in
// up to max_clusters_to_search temporal clusters, with results cached
// under a query fingerprint and single-flighted so concurrent
// identical requests share one build. Grounded on an
// orchestration.Orchestrator read path (cache-then-compute,
// golang.org/x/sync/singleflight coalescing concurrent rebuilds of the
// same key) generalized from workflow results to retrieval results.
package query

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/memexlabs/memex/internal/episode"
	"github.com/memexlabs/memex/internal/index"
	"github.com/memexlabs/memex/internal/ttlcache"
)

// Weights scales each of the four relevance signals; a well-formed
// Config has them summing to 1.
type Weights struct {
	Domain   float64
	TaskType float64
	Temporal float64
	Text     float64
}

// Config tunes the retrieval engine.
type Config struct {
	Weights            Weights
	TemporalBiasWeight float64 // scales the Temporal weight's contribution; 1.0 is neutral
	MaxClustersToSearch int
	MaxClusterMembers  int // per-cluster member fetch cap
	DefaultLimit       int
	Embedding          EmbeddingProvider // optional; nil falls back to Jaccard word overlap
}

func DefaultConfig() Config {
	return Config{
		Weights:             Weights{Domain: 0.3, TaskType: 0.2, Temporal: 0.2, Text: 0.3},
		TemporalBiasWeight:  1.0,
		MaxClustersToSearch: 5,
		MaxClusterMembers:   500,
		DefaultLimit:        10,
	}
}

// Request is a retrieval query.
type Request struct {
	Domain   string
	TaskType string
	Text     string
	Limit    int
}

// Result is one scored episode.
type Result struct {
	EpisodeID string
	Score     float64
}

// Loader fetches a full episode by id for scoring; callers typically
// supply a cache-then-durable read-through (e.g. engine.Engine.GetEpisode).
type Loader func(ctx context.Context, id string) (*episode.Episode, error)

// Engine is the retrieval engine.
type Engine struct {
	idx   *index.Index
	load  Loader
	cache *ttlcache.Cache
	cfg   Config
	sf    singleflight.Group
	now   func() time.Time
}

// New builds a retrieval Engine.
func New(idx *index.Index, load Loader, cache *ttlcache.Cache, cfg Config, now func() time.Time) *Engine {
	if cfg.MaxClustersToSearch <= 0 {
		cfg = DefaultConfig()
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{idx: idx, load: load, cache: cache, cfg: cfg, now: now}
}

// Query scores and ranks episodes matching req, serving from cache when
// available and coalescing concurrent identical requests.
func (e *Engine) Query(ctx context.Context, req Request) ([]Result, error) {
	if req.Limit == 0 {
		return nil, nil
	}

	fp := fingerprint(req)

	if e.cache != nil {
		if cached, ok := e.cache.Get(fp); ok {
			return cached.([]Result), nil
		}
	}

	v, err, _ := e.sf.Do(fp, func() (interface{}, error) {
		results, err := e.build(ctx, req)
		if err != nil {
			return nil, err
		}
		if e.cache != nil {
			e.cache.Insert(fp, results, int64(len(results)))
		}
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Result), nil
}

func (e *Engine) build(ctx context.Context, req Request) ([]Result, error) {
	limit := req.Limit
	if limit < 0 {
		limit = e.cfg.DefaultLimit
	}

	clusters := e.idx.Clusters(req.Domain, req.TaskType, e.cfg.MaxClustersToSearch)

	var scored []Result
	seen := map[string]struct{}{}
	for _, cluster := range clusters {
		ids := e.idx.Run(index.Query{Domain: req.Domain, TaskType: req.TaskType, Bucket: &cluster, Limit: e.cfg.MaxClusterMembers})
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}

			ep, err := e.load(ctx, id)
			if err != nil || ep == nil {
				continue
			}
			scored = append(scored, Result{EpisodeID: id, Score: e.score(ctx, ep, req)})
		}
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (e *Engine) score(ctx context.Context, ep *episode.Episode, req Request) float64 {
	w := e.cfg.Weights
	l1 := domainMatch(ep.Context.Domain, req.Domain)
	l2 := taskTypeMatch(string(ep.TaskType), req.TaskType)
	l3 := temporalProximity(ep.StartTime, e.now())
	l4 := e.textSimilarity(ctx, ep, req.Text)

	return w.Domain*l1 + w.TaskType*l2 + (w.Temporal*e.cfg.TemporalBiasWeight)*l3 + w.Text*l4
}
