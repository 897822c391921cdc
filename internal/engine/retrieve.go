package engine

import (
	"context"

	"github.com/memexlabs/memex/internal/episode"
	"github.com/memexlabs/memex/internal/errs"
	"github.com/memexlabs/memex/internal/query"
	"github.com/memexlabs/memex/internal/ratelimit"
)

// RetrieveRelevantContext ranks episodes matching the given domain/task
// type context and free-text query. Backed by the retrieval engine
// wired in at construction; returns an empty slice if none was configured.
func (e *Engine) RetrieveRelevantContext(ctx context.Context, queryText string, queryCtx episode.Context, taskType episode.TaskType, limit int) ([]query.Result, error) {
	if e.cfg.Limiter != nil {
		if allowed, _ := e.cfg.Limiter.TryConsume(clientOf(ctx), ratelimit.Read, 1); !allowed {
			return nil, errs.Wrap("engine.retrieve_relevant_context", errs.KindRateLimited, errs.ErrRateLimited)
		}
	}
	if e.query == nil {
		return nil, nil
	}
	return e.query.Query(ctx, query.Request{
		Domain:   queryCtx.Domain,
		TaskType: string(taskType),
		Text:     queryText,
		Limit:    limit,
	})
}
