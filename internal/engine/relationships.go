package engine

import (
	"context"

	"github.com/memexlabs/memex/internal/errs"
	"github.com/memexlabs/memex/internal/relationship"
	"github.com/memexlabs/memex/internal/store"
)

// AddRelationship persists a typed edge between two episodes, first
// verifying (for acyclic relationship types) that the new edge would
// not create a cycle in that type's induced subgraph.
func (e *Engine) AddRelationship(ctx context.Context, r relationship.Relationship) error {
	if r.From == r.To {
		return errs.Wrap("engine.add_relationship", errs.KindInvalidArgument, errs.ErrSelfRelationship)
	}

	outgoing, err := e.cfg.Durable.GetRelationships(ctx, r.From, store.DirectionOutgoing)
	if err != nil {
		return err
	}
	for _, existing := range outgoing {
		if existing.To == r.To && existing.Type == r.Type {
			return errs.Wrap("engine.add_relationship", errs.KindValidationFailed, errs.ErrDuplicateEdge)
		}
	}

	if relationship.IsAcyclicType(r.Type) {
		// Collect the edges reachable from r.To along outgoing edges of
		// this type; the new edge closes a cycle iff r.From is among them.
		var reachable []relationship.Relationship
		seen := map[string]bool{r.To: true}
		frontier := []string{r.To}
		for len(frontier) > 0 {
			edges, err := e.cfg.Durable.GetRelationships(ctx, frontier[0], store.DirectionOutgoing)
			if err != nil {
				return err
			}
			frontier = frontier[1:]
			for _, x := range edges {
				if x.Type == r.Type && !seen[x.To] {
					seen[x.To] = true
					frontier = append(frontier, x.To)
				}
			}
			reachable = append(reachable, edges...)
		}
		g := relationship.Filtered(reachable, r.Type)
		if g.WouldCreateCycle(r.From, r.To) {
			return errs.Wrap("engine.add_relationship", errs.KindValidationFailed, errs.ErrWouldCycle)
		}
	}

	if r.ID == "" {
		r.ID = e.idGen()
	}

	if e.cfg.Breaker != nil {
		if err := e.cfg.Breaker.Call(ctx, func(ctx context.Context) error {
			return e.cfg.Durable.StoreRelationship(ctx, r)
		}); err != nil {
			return err
		}
	} else if err := e.cfg.Durable.StoreRelationship(ctx, r); err != nil {
		return err
	}

	if e.cfg.Secondary != nil {
		if err := e.cfg.Secondary.StoreRelationship(ctx, r); err != nil {
			e.logger.WarnCtx(ctx, "secondary store_relationship failed", map[string]interface{}{"from": r.From, "to": r.To, "error": err.Error()})
		}
	}
	return nil
}

// GetRelationships returns the relationships touching episodeID in
// the given direction.
func (e *Engine) GetRelationships(ctx context.Context, episodeID string, dir store.Direction) ([]relationship.Relationship, error) {
	return e.cfg.Durable.GetRelationships(ctx, episodeID, dir)
}

// RemoveRelationship deletes the (from,to,type) edge from both tiers.
// A missing edge is not an error: removal is idempotent.
func (e *Engine) RemoveRelationship(ctx context.Context, from, to string, t relationship.Type) error {
	if e.cfg.Breaker != nil {
		if err := e.cfg.Breaker.Call(ctx, func(ctx context.Context) error {
			return e.cfg.Durable.DeleteRelationship(ctx, from, to, t)
		}); err != nil {
			return err
		}
	} else if err := e.cfg.Durable.DeleteRelationship(ctx, from, to, t); err != nil {
		return err
	}

	if e.cfg.Secondary != nil {
		if err := e.cfg.Secondary.DeleteRelationship(ctx, from, to, t); err != nil {
			e.logger.WarnCtx(ctx, "secondary delete_relationship failed", map[string]interface{}{"from": from, "to": to, "error": err.Error()})
		}
	}
	return nil
}
