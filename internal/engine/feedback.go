package engine

import (
	"context"
)

// UpdateHeuristicFeedback records an observed outcome of applying an
// existing heuristic, updating its running success_rate and confidence
// via pattern.Heuristic.UpdateEvidence. The heuristic is re-persisted
// cache-first-then-durable after the update.
func (e *Engine) UpdateHeuristicFeedback(ctx context.Context, heuristicID, episodeID string, success bool) error {
	h, err := e.cfg.Durable.GetHeuristic(ctx, heuristicID)
	if err != nil {
		return err
	}

	h.UpdateEvidence(episodeID, success)
	e.persistHeuristic(ctx, h)
	return nil
}
