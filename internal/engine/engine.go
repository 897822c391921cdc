// Package engine implements the learning engine orchestrator: the
// episode lifecycle (start_episode, log_step, complete_episode,
// get_episode), relationship management, and feedback updates, wiring
// together every other internal package. Grounded on an
// orchestration.Orchestrator idiom (a thin façade composing
// independently-testable collaborators behind a single entry point)
// generalized from workflow execution to episodic memory.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/memexlabs/memex/internal/breaker"
	"github.com/memexlabs/memex/internal/buffer"
	"github.com/memexlabs/memex/internal/episode"
	"github.com/memexlabs/memex/internal/errs"
	"github.com/memexlabs/memex/internal/extract"
	"github.com/memexlabs/memex/internal/index"
	"github.com/memexlabs/memex/internal/logging"
	"github.com/memexlabs/memex/internal/quality"
	"github.com/memexlabs/memex/internal/query"
	"github.com/memexlabs/memex/internal/queue"
	"github.com/memexlabs/memex/internal/ratelimit"
	"github.com/memexlabs/memex/internal/relationship"
	"github.com/memexlabs/memex/internal/store"
	"github.com/memexlabs/memex/internal/ttlcache"
)

// SecondaryStore is the capability set the secondary cache tier
// exposes beyond store.Store: clear_all.
type SecondaryStore interface {
	store.Store
	ClearAll(ctx context.Context) error
}

// Config wires every collaborator the engine needs. Nil optional
// fields disable the corresponding feature (rate limiting, the
// background extraction queue, semantic summaries) without error.
type Config struct {
	Durable   store.Store
	Secondary SecondaryStore
	Index     *index.Index
	// ResultCache is the retrieval-result cache the query engine reads
	// from; complete_episode's step 12 clears it wholesale on every
	// completion, so the engine only needs a reference, not ownership.
	ResultCache *ttlcache.Cache

	Breaker *breaker.CircuitBreaker
	Limiter *ratelimit.Limiter // optional
	Queue   queue.Queue        // optional; nil means extraction always runs inline

	Quality    quality.Config
	Capacity   quality.CapacityConfig
	Reward     extract.RewardConfig
	Pattern    extract.PatternConfig
	Heuristic  extract.HeuristicConfig
	Summarizer extract.SummaryProvider // optional
	Retrieval  query.Config

	BufferConfig buffer.Config
	Logger       logging.Logger

	// IDGen and Now are overridable for deterministic tests; default
	// to uuid.NewString and time.Now.
	IDGen func() string
	Now   func() time.Time
}

// Engine is the learning engine orchestrator.
type Engine struct {
	cfg Config

	buffers *buffer.Manager

	mu    sync.Mutex
	open  map[string]*episode.Episode
	cands map[string]quality.Candidate // capacity-manager bookkeeping for completed episodes

	pool  *queue.Pool
	query *query.Engine

	idGen func() string
	now   func() time.Time

	logger logging.Logger
}

// New builds an Engine from cfg, filling unset optional collaborators
// with inert defaults (no-op logger, always-allow limiter is simply
// absent, inline-only extraction when no queue is configured).
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = logging.NoOp{}
	}
	if cfg.IDGen == nil {
		cfg.IDGen = uuid.NewString
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.BufferConfig == (buffer.Config{}) {
		cfg.BufferConfig = buffer.DefaultConfig()
	}

	e := &Engine{
		cfg:     cfg,
		buffers: buffer.NewManager(cfg.BufferConfig),
		open:    map[string]*episode.Episode{},
		cands:   map[string]quality.Candidate{},
		idGen:   cfg.IDGen,
		now:     cfg.Now,
		logger:  cfg.Logger,
	}

	if cfg.Queue != nil {
		e.pool = queue.NewPool(cfg.Queue, e.handleExtractionTask, queue.DefaultWorkerConfig(), cfg.Logger)
	}

	if cfg.Index != nil {
		retrievalCfg := cfg.Retrieval
		if retrievalCfg.MaxClustersToSearch <= 0 {
			retrievalCfg = query.DefaultConfig()
		}
		e.query = query.New(cfg.Index, e.GetEpisode, cfg.ResultCache, retrievalCfg, cfg.Now)
	}

	return e
}

// Start launches the background extraction worker pool, if a queue is
// configured. Safe to call on an engine with no queue: it is then a
// no-op, and extraction always runs inline.
func (e *Engine) Start(ctx context.Context) error {
	if e.pool == nil {
		return nil
	}
	return e.pool.Start(ctx)
}

// Stop drains the background extraction worker pool, if running.
func (e *Engine) Stop() error {
	if e.pool == nil {
		return nil
	}
	return e.pool.Stop()
}

// StartEpisode opens a new episode and returns its id.
func (e *Engine) StartEpisode(ctx context.Context, description string, ctxData episode.Context, taskType episode.TaskType) (string, error) {
	if e.cfg.Limiter != nil {
		if allowed, _ := e.cfg.Limiter.TryConsume(clientOf(ctx), ratelimit.Write, 1); !allowed {
			return "", errs.Wrap("engine.start_episode", errs.KindRateLimited, errs.ErrRateLimited)
		}
	}

	id := e.idGen()
	ep := &episode.Episode{
		ID:          id,
		Description: description,
		TaskType:    taskType,
		Context:     ctxData,
		StartTime:   e.now(),
		Metadata:    map[string]string{},
	}

	e.mu.Lock()
	e.open[id] = ep
	e.mu.Unlock()

	e.logger.InfoCtx(ctx, "episode started", map[string]interface{}{"episode_id": id, "task_type": string(taskType)})
	return id, nil
}

// LogStep appends a step to episodeID's buffer, assigning it the next
// sequential step number, and flushes the buffer into the open
// episode's step list if a flush trigger has fired.
func (e *Engine) LogStep(ctx context.Context, episodeID string, step episode.ExecutionStep) error {
	if e.cfg.Limiter != nil {
		if allowed, _ := e.cfg.Limiter.TryConsume(clientOf(ctx), ratelimit.Write, 1); !allowed {
			return errs.Wrap("engine.log_step", errs.KindRateLimited, errs.ErrRateLimited)
		}
	}

	e.mu.Lock()
	ep, ok := e.open[episodeID]
	if !ok {
		e.mu.Unlock()
		return errs.New("engine.log_step", errs.KindNotFound, episodeID, errs.ErrEpisodeNotFound)
	}
	if ep.IsComplete() {
		e.mu.Unlock()
		return errs.New("engine.log_step", errs.KindValidationFailed, episodeID, errs.ErrAlreadyComplete)
	}
	step.Number = len(ep.Steps) + e.buffers.Len(episodeID) + 1
	e.mu.Unlock()

	e.buffers.AddStep(episodeID, step)
	if e.buffers.ShouldFlush(episodeID) {
		e.flushBuffer(episodeID)
	}
	return nil
}

// flushBuffer atomically drains episodeID's step buffer into the open
// episode's step list, preserving insertion order. A no-op if the
// episode isn't open or the buffer is empty.
func (e *Engine) flushBuffer(episodeID string) {
	steps := e.buffers.TakeSteps(episodeID)
	if len(steps) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if ep, ok := e.open[episodeID]; ok {
		ep.Steps = append(ep.Steps, steps...)
	}
}

// GetEpisode returns the current view of an episode: the live
// in-memory record (with any buffered steps flushed in first) while
// open, or the persisted record (cache-first, falling back to
// durable and re-inserting on miss) once complete.
func (e *Engine) GetEpisode(ctx context.Context, id string) (*episode.Episode, error) {
	if e.cfg.Limiter != nil {
		if allowed, _ := e.cfg.Limiter.TryConsume(clientOf(ctx), ratelimit.Read, 1); !allowed {
			return nil, errs.Wrap("engine.get_episode", errs.KindRateLimited, errs.ErrRateLimited)
		}
	}

	e.flushBuffer(id)

	e.mu.Lock()
	if ep, ok := e.open[id]; ok {
		cp := *ep
		cp.Steps = append([]episode.ExecutionStep(nil), ep.Steps...)
		e.mu.Unlock()
		return &cp, nil
	}
	e.mu.Unlock()

	return e.readThrough(ctx, id)
}

// readThrough implements the secondary-cache-first, durable-fallback,
// re-insert-on-miss read path shared by every completed-episode
// lookup.
func (e *Engine) readThrough(ctx context.Context, id string) (*episode.Episode, error) {
	if e.cfg.Secondary != nil {
		if ep, err := e.cfg.Secondary.GetEpisode(ctx, id); err == nil {
			return ep, nil
		}
	}

	var ep *episode.Episode
	fetch := func(ctx context.Context) error {
		var callErr error
		ep, callErr = e.cfg.Durable.GetEpisode(ctx, id)
		return callErr
	}
	var err error
	if e.cfg.Breaker != nil {
		err = e.cfg.Breaker.Call(ctx, fetch)
	} else {
		err = fetch(ctx)
	}
	if err != nil {
		return nil, err
	}

	if e.cfg.Secondary != nil {
		if insertErr := e.cfg.Secondary.StoreEpisode(ctx, ep); insertErr != nil {
			e.logger.Warn("secondary cache re-insert failed", map[string]interface{}{"episode_id": id, "error": insertErr.Error()})
		}
	}
	return ep, nil
}

type clientKey struct{}

// WithClientID attaches a rate-limiter client identity to ctx.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientKey{}, clientID)
}

func clientOf(ctx context.Context) string {
	if v, ok := ctx.Value(clientKey{}).(string); ok && v != "" {
		return v
	}
	return "default"
}
