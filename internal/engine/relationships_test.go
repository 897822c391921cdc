package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memexlabs/memex/internal/errs"
	"github.com/memexlabs/memex/internal/relationship"
	"github.com/memexlabs/memex/internal/store"
)

func TestAddRelationshipRejectsSelfReference(t *testing.T) {
	e := newTestEngine(t)
	err := e.AddRelationship(context.Background(), relationship.Relationship{From: "ep-1", To: "ep-1", Type: relationship.TypeDependsOn})
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidArgument, errs.KindOf(err))
}

func TestAddRelationshipRejectsCycleForAcyclicType(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.AddRelationship(ctx, relationship.Relationship{From: "a", To: "b", Type: relationship.TypeDependsOn}))
	require.NoError(t, e.AddRelationship(ctx, relationship.Relationship{From: "b", To: "c", Type: relationship.TypeDependsOn}))

	err := e.AddRelationship(ctx, relationship.Relationship{From: "c", To: "a", Type: relationship.TypeDependsOn})
	require.Error(t, err)
	assert.Equal(t, errs.KindValidationFailed, errs.KindOf(err))
}

func TestAddRelationshipRejectsDuplicateEdge(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.AddRelationship(ctx, relationship.Relationship{From: "a", To: "b", Type: relationship.TypeRelatedTo}))

	err := e.AddRelationship(ctx, relationship.Relationship{From: "a", To: "b", Type: relationship.TypeRelatedTo})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrDuplicateEdge)
}

func TestAddRelationshipAllowsSameFromToWithDifferentType(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.AddRelationship(ctx, relationship.Relationship{From: "a", To: "b", Type: relationship.TypeRelatedTo}))
	require.NoError(t, e.AddRelationship(ctx, relationship.Relationship{From: "a", To: "b", Type: relationship.TypeFollows}))
}

func TestAddRelationshipAllowsCycleForNonAcyclicType(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.AddRelationship(ctx, relationship.Relationship{From: "a", To: "b", Type: relationship.TypeRelatedTo}))
	require.NoError(t, e.AddRelationship(ctx, relationship.Relationship{From: "b", To: "a", Type: relationship.TypeRelatedTo}))
}

func TestGetRelationshipsReturnsStoredEdges(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.AddRelationship(ctx, relationship.Relationship{From: "a", To: "b", Type: relationship.TypeFollows}))

	rels, err := e.GetRelationships(ctx, "a", store.DirectionOutgoing)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, "b", rels[0].To)
}

func TestRemoveRelationshipIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.AddRelationship(ctx, relationship.Relationship{From: "a", To: "b", Type: relationship.TypeFollows}))
	require.NoError(t, e.RemoveRelationship(ctx, "a", "b", relationship.TypeFollows))

	rels, err := e.GetRelationships(ctx, "a", store.DirectionOutgoing)
	require.NoError(t, err)
	assert.Empty(t, rels)

	// Removing again is a no-op, not an error.
	require.NoError(t, e.RemoveRelationship(ctx, "a", "b", relationship.TypeFollows))
}
