// Package store implements a durable store façade: persisted storage
// of episodes, patterns, heuristics, relationships, and metadata, with
// batch operations executing under a single transaction. Grounded on a
// core.MemoryStore idiom (component logging, framework metrics hooks)
// generalized from a single in-memory map to a modernc.org/sqlite-backed
// relational schema, and on core.SchemaCache's Stats()-snapshot idiom
// for batch results.
package store

import (
	"context"

	"github.com/memexlabs/memex/internal/episode"
	"github.com/memexlabs/memex/internal/pattern"
	"github.com/memexlabs/memex/internal/relationship"
)

// PatternFilter narrows query_patterns by kind and/or minimum success rate.
type PatternFilter struct {
	Kind          *pattern.Kind
	MinSuccess    float64
	DomainContext string
}

// Direction selects which end of a relationship to query by.
type Direction int

const (
	DirectionOutgoing Direction = iota
	DirectionIncoming
	DirectionBoth
)

// BatchResult describes the outcome of a batch operation: counts of
// processed/succeeded/failed items plus a bounded error list.
type BatchResult struct {
	Processed int
	Succeeded int
	Failed    int
	Errors    []BatchError // bounded; see maxBatchErrors in the implementation
}

// BatchError pairs the id that failed with its error message.
type BatchError struct {
	ID      string
	Message string
}

// Store is the capability set both the durable store and the
// secondary cache implement, so the engine can parameterize on it
// without caring which tier it's talking to.
type Store interface {
	StoreEpisode(ctx context.Context, e *episode.Episode) error
	GetEpisode(ctx context.Context, id string) (*episode.Episode, error)
	DeleteEpisode(ctx context.Context, id string) error
	QueryEpisodesByMetadata(ctx context.Context, key, value string) ([]string, error)

	StorePattern(ctx context.Context, p *pattern.Pattern) error
	GetPattern(ctx context.Context, id string) (*pattern.Pattern, error)
	QueryPatterns(ctx context.Context, filter PatternFilter) ([]*pattern.Pattern, error)

	StoreHeuristic(ctx context.Context, h *pattern.Heuristic) error
	GetHeuristic(ctx context.Context, id string) (*pattern.Heuristic, error)

	StoreRelationship(ctx context.Context, r relationship.Relationship) error
	GetRelationships(ctx context.Context, episodeID string, dir Direction) ([]relationship.Relationship, error)
	DeleteRelationship(ctx context.Context, from, to string, t relationship.Type) error

	StorePatternsBatch(ctx context.Context, ps []*pattern.Pattern) BatchResult
	GetPatternsBatch(ctx context.Context, ids []string) ([]*pattern.Pattern, BatchResult)
	UpdatePatternsBatch(ctx context.Context, ps []*pattern.Pattern) BatchResult
	DeletePatternsBatch(ctx context.Context, ids []string) BatchResult
}
