package engine

import (
	"context"

	"github.com/memexlabs/memex/internal/episode"
	"github.com/memexlabs/memex/internal/errs"
	"github.com/memexlabs/memex/internal/extract"
	"github.com/memexlabs/memex/internal/index"
	"github.com/memexlabs/memex/internal/pattern"
	"github.com/memexlabs/memex/internal/quality"
	"github.com/memexlabs/memex/internal/queue"
	"github.com/memexlabs/memex/internal/ratelimit"
	"github.com/memexlabs/memex/internal/store"
)

// CompleteEpisode runs the fixed completion sequence: flush, load,
// attach outcome and validate, quality gate, salient extraction,
// reward, reflection, optional summary, capacity enforcement,
// cache-then-durable persistence, indexing, query-cache invalidation,
// and pattern/heuristic extraction (inline or enqueued).
func (e *Engine) CompleteEpisode(ctx context.Context, id string, outcome episode.Outcome) (*episode.Episode, error) {
	if e.cfg.Limiter != nil {
		if allowed, _ := e.cfg.Limiter.TryConsume(clientOf(ctx), ratelimit.Write, 1); !allowed {
			return nil, errs.Wrap("engine.complete_episode", errs.KindRateLimited, errs.ErrRateLimited)
		}
	}

	// 1. Flush buffered steps regardless of threshold.
	e.flushBuffer(id)

	// 2. Load the open episode; fail with NotFound if absent.
	e.mu.Lock()
	ep, ok := e.open[id]
	if !ok {
		e.mu.Unlock()
		return nil, errs.New("engine.complete_episode", errs.KindNotFound, id, errs.ErrEpisodeNotFound)
	}
	if ep.IsComplete() {
		e.mu.Unlock()
		return nil, errs.New("engine.complete_episode", errs.KindValidationFailed, id, errs.ErrAlreadyComplete)
	}
	e.mu.Unlock()

	// 3. Attach outcome and run structural validation.
	ep.Outcome = &outcome
	end := e.now()
	ep.EndTime = &end
	if err := episode.ValidateStructure(ep); err != nil {
		ep.Outcome = nil
		ep.EndTime = nil
		return nil, err
	}

	// 4. Quality assessment.
	score, passes := quality.Passes(ep, e.cfg.Quality)
	if !passes {
		ep.Outcome = nil
		ep.EndTime = nil
		return nil, errs.New("engine.complete_episode", errs.KindValidationFailed, id, errs.ErrQualityRejected)
	}

	// 5. Salient feature extraction.
	ep.Salient = extract.ExtractSalient(ep)

	// 6. Reward computation. Patterns discovered by this completion are
	// not yet known (extraction is step 13), so the contribution is 0;
	// a later re-run of the extractor (e.g. reconciliation) could refine it.
	reward := extract.CalculateReward(ep, 0, e.cfg.Reward)
	ep.Reward = &reward

	// 7. Reflection generation.
	ep.Reflection = extract.GenerateReflection(ep, e.now)

	// 8. Optional semantic summary, best-effort.
	if e.cfg.Summarizer != nil {
		if summary, err := e.cfg.Summarizer.Summarize(ep); err != nil {
			e.logger.WarnCtx(ctx, "semantic summary failed", map[string]interface{}{"episode_id": id, "error": err.Error()})
		} else {
			if ep.Metadata == nil {
				ep.Metadata = map[string]string{}
			}
			ep.Metadata["summary"] = summary
		}
	}

	// 9. Capacity enforcement.
	e.enforceCapacity(ctx, quality.CandidateFromEpisode(ep, reward, score, end))

	// 10. Persist: secondary cache first (best-effort), then durable
	// through the circuit breaker; durable errors are logged and
	// swallowed since the cache retains the value.
	if e.cfg.Secondary != nil {
		if err := e.cfg.Secondary.StoreEpisode(ctx, ep); err != nil {
			e.logger.WarnCtx(ctx, "secondary store_episode failed", map[string]interface{}{"episode_id": id, "error": err.Error()})
		}
	}
	if e.cfg.Breaker != nil {
		if err := e.cfg.Breaker.Call(ctx, func(ctx context.Context) error {
			return e.cfg.Durable.StoreEpisode(ctx, ep)
		}); err != nil {
			e.logger.WarnCtx(ctx, "durable store_episode failed", map[string]interface{}{"episode_id": id, "error": err.Error()})
		}
	}

	// 11. Index the episode.
	if e.cfg.Index != nil {
		e.cfg.Index.Insert(index.Entry{EpisodeID: ep.ID, Domain: ep.Context.Domain, TaskType: string(ep.TaskType), Timestamp: ep.StartTime})
	}

	// 12. Query-cache invalidation.
	if e.cfg.ResultCache != nil {
		e.cfg.ResultCache.Clear()
	}

	e.mu.Lock()
	delete(e.open, id)
	e.cands[id] = quality.CandidateFromEpisode(ep, reward, score, end)
	e.mu.Unlock()

	// 13. Enqueue for async pattern extraction, or run inline.
	if e.cfg.Queue != nil {
		task := &queue.Task{ID: e.idGen(), EpisodeID: id, CreatedAt: e.now()}
		if err := e.cfg.Queue.Enqueue(ctx, task); err != nil {
			e.logger.WarnCtx(ctx, "extraction enqueue failed, running inline", map[string]interface{}{"episode_id": id, "error": err.Error()})
			e.runExtraction(ctx, ep)
		}
	} else {
		e.runExtraction(ctx, ep)
	}

	cp := *ep
	return &cp, nil
}

// handleExtractionTask is the queue.Handler bound to the background
// worker pool; it loads the episode by id and runs the same
// extraction path the inline fallback uses.
func (e *Engine) handleExtractionTask(ctx context.Context, task *queue.Task) error {
	ep, err := e.readThrough(ctx, task.EpisodeID)
	if err != nil {
		return err
	}
	e.runExtraction(ctx, ep)
	return nil
}

// runExtraction derives patterns and heuristics from a completed
// episode, persists each through the cache-first-then-durable
// protocol, and updates the episode's id lists.
func (e *Engine) runExtraction(ctx context.Context, ep *episode.Episode) {
	reference := e.referencePatterns(ctx, ep.Context.Domain)

	patterns := extract.ExtractPatterns(ep, reference, e.cfg.Pattern, e.idGen, e.now)
	for _, p := range patterns {
		e.persistPattern(ctx, p)
		ep.AppendPatternID(p.ID)
	}

	heuristics := extract.ExtractHeuristics(ep, e.cfg.Heuristic, e.idGen, e.now)
	for _, h := range heuristics {
		e.persistHeuristic(ctx, h)
		ep.AppendHeuristicID(h.ID)
	}

	if len(patterns) == 0 && len(heuristics) == 0 {
		return
	}

	if e.cfg.Secondary != nil {
		if err := e.cfg.Secondary.StoreEpisode(ctx, ep); err != nil {
			e.logger.WarnCtx(ctx, "secondary re-store after extraction failed", map[string]interface{}{"episode_id": ep.ID, "error": err.Error()})
		}
	}
	if e.cfg.Breaker != nil {
		if err := e.cfg.Breaker.Call(ctx, func(ctx context.Context) error {
			return e.cfg.Durable.StoreEpisode(ctx, ep)
		}); err != nil {
			e.logger.WarnCtx(ctx, "durable re-store after extraction failed", map[string]interface{}{"episode_id": ep.ID, "error": err.Error()})
		}
	}
}

// referencePatterns fetches the existing patterns used as the
// validation reference set for newly extracted candidates. The stores
// do not apply the DomainContext filter passed here, so every stored
// pattern is returned regardless of domain.
func (e *Engine) referencePatterns(ctx context.Context, domain string) []*pattern.Pattern {
	if e.cfg.Durable == nil {
		return nil
	}
	ps, err := e.cfg.Durable.QueryPatterns(ctx, store.PatternFilter{DomainContext: domain})
	if err != nil {
		return nil
	}
	return ps
}

func (e *Engine) persistPattern(ctx context.Context, p *pattern.Pattern) {
	if e.cfg.Secondary != nil {
		if err := e.cfg.Secondary.StorePattern(ctx, p); err != nil {
			e.logger.WarnCtx(ctx, "secondary store_pattern failed", map[string]interface{}{"pattern_id": p.ID, "error": err.Error()})
		}
	}
	if e.cfg.Breaker != nil {
		if err := e.cfg.Breaker.Call(ctx, func(ctx context.Context) error {
			return e.cfg.Durable.StorePattern(ctx, p)
		}); err != nil {
			e.logger.WarnCtx(ctx, "durable store_pattern failed", map[string]interface{}{"pattern_id": p.ID, "error": err.Error()})
		}
	}
}

func (e *Engine) persistHeuristic(ctx context.Context, h *pattern.Heuristic) {
	if e.cfg.Secondary != nil {
		if err := e.cfg.Secondary.StoreHeuristic(ctx, h); err != nil {
			e.logger.WarnCtx(ctx, "secondary store_heuristic failed", map[string]interface{}{"heuristic_id": h.ID, "error": err.Error()})
		}
	}
	if e.cfg.Breaker != nil {
		if err := e.cfg.Breaker.Call(ctx, func(ctx context.Context) error {
			return e.cfg.Durable.StoreHeuristic(ctx, h)
		}); err != nil {
			e.logger.WarnCtx(ctx, "durable store_heuristic failed", map[string]interface{}{"heuristic_id": h.ID, "error": err.Error()})
		}
	}
}

// enforceCapacity selects and removes eviction victims if a capacity
// limit is configured and exceeded. The candidate about to complete is
// included in the ranking before victims are computed; if it is itself
// selected, eviction finds nothing stored for it yet and the steps that
// follow still persist it.
func (e *Engine) enforceCapacity(ctx context.Context, current quality.Candidate) {
	if e.cfg.Capacity.MaxEpisodes <= 0 {
		return
	}

	e.mu.Lock()
	all := make([]quality.Candidate, 0, len(e.cands)+1)
	for _, c := range e.cands {
		all = append(all, c)
	}
	e.mu.Unlock()
	all = append(all, current)

	victims := quality.SelectVictims(all, e.cfg.Capacity)
	for _, victimID := range victims {
		e.evict(ctx, victimID)
	}
}

func (e *Engine) evict(ctx context.Context, episodeID string) {
	if e.cfg.Index != nil {
		if ep, err := e.readThrough(ctx, episodeID); err == nil && ep != nil {
			e.cfg.Index.Remove(index.Entry{EpisodeID: ep.ID, Domain: ep.Context.Domain, TaskType: string(ep.TaskType), Timestamp: ep.StartTime})
		}
	}
	if e.cfg.Secondary != nil {
		if err := e.cfg.Secondary.DeleteEpisode(ctx, episodeID); err != nil {
			e.logger.WarnCtx(ctx, "secondary delete_episode during eviction failed", map[string]interface{}{"episode_id": episodeID, "error": err.Error()})
		}
	}
	if e.cfg.Breaker != nil {
		if err := e.cfg.Breaker.Call(ctx, func(ctx context.Context) error {
			return e.cfg.Durable.DeleteEpisode(ctx, episodeID)
		}); err != nil {
			e.logger.WarnCtx(ctx, "durable delete_episode during eviction failed", map[string]interface{}{"episode_id": episodeID, "error": err.Error()})
		}
	}
	e.mu.Lock()
	delete(e.cands, episodeID)
	e.mu.Unlock()
}
