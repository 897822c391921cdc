package secondary

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/memexlabs/memex/internal/episode"
	"github.com/memexlabs/memex/internal/errs"
	"github.com/memexlabs/memex/internal/pattern"
	"github.com/memexlabs/memex/internal/relationship"
	"github.com/memexlabs/memex/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBolt(t *testing.T) *Bolt {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secondary.db")
	b, err := OpenBolt(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBoltStoreAndGetEpisode(t *testing.T) {
	b := newTestBolt(t)
	ctx := context.Background()
	e := &episode.Episode{ID: "ep-1", Description: "x", StartTime: time.Now(), Metadata: map[string]string{"team": "core"}}
	require.NoError(t, b.StoreEpisode(ctx, e))

	got, err := b.GetEpisode(ctx, "ep-1")
	require.NoError(t, err)
	assert.Equal(t, "x", got.Description)
}

func TestBoltGetMissingEpisodeIsNotFound(t *testing.T) {
	b := newTestBolt(t)
	_, err := b.GetEpisode(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrEpisodeNotFound)
}

func TestBoltGetMissingPatternIsNotFound(t *testing.T) {
	b := newTestBolt(t)
	_, err := b.GetPattern(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrPatternNotFound)
}

func TestBoltGetMissingHeuristicIsNotFound(t *testing.T) {
	b := newTestBolt(t)
	_, err := b.GetHeuristic(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrHeuristicNotFound)
}

func TestBoltQueryEpisodesByMetadataLinearScan(t *testing.T) {
	b := newTestBolt(t)
	ctx := context.Background()
	require.NoError(t, b.StoreEpisode(ctx, &episode.Episode{ID: "ep-1", StartTime: time.Now(), Metadata: map[string]string{"team": "core"}}))
	require.NoError(t, b.StoreEpisode(ctx, &episode.Episode{ID: "ep-2", StartTime: time.Now(), Metadata: map[string]string{"team": "other"}}))

	ids, err := b.QueryEpisodesByMetadata(ctx, "team", "core")
	require.NoError(t, err)
	assert.Equal(t, []string{"ep-1"}, ids)
}

func TestBoltPatternRoundTripAndFilter(t *testing.T) {
	b := newTestBolt(t)
	ctx := context.Background()
	require.NoError(t, b.StorePattern(ctx, &pattern.Pattern{ID: "p-1", Kind: pattern.KindToolSequence, SuccessRate: 0.8}))

	got, err := b.GetPattern(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, 0.8, got.SuccessRate)

	out, err := b.QueryPatterns(ctx, store.PatternFilter{MinSuccess: 0.9})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestBoltRelationshipsByDirection(t *testing.T) {
	b := newTestBolt(t)
	ctx := context.Background()
	require.NoError(t, b.StoreRelationship(ctx, relationship.Relationship{ID: "r-1", From: "a", To: "b", Type: relationship.TypeDependsOn}))

	out, err := b.GetRelationships(ctx, "a", store.DirectionOutgoing)
	require.NoError(t, err)
	assert.Len(t, out, 1)

	out, err = b.GetRelationships(ctx, "a", store.DirectionIncoming)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestBoltClearAllDropsEverythingButReopensBuckets(t *testing.T) {
	b := newTestBolt(t)
	ctx := context.Background()
	require.NoError(t, b.StoreEpisode(ctx, &episode.Episode{ID: "ep-1", StartTime: time.Now()}))

	require.NoError(t, b.ClearAll(ctx))
	_, err := b.GetEpisode(ctx, "ep-1")
	assert.Error(t, err)

	require.NoError(t, b.StoreEpisode(ctx, &episode.Episode{ID: "ep-2", StartTime: time.Now()}))
	got, err := b.GetEpisode(ctx, "ep-2")
	require.NoError(t, err)
	assert.Equal(t, "ep-2", got.ID)
}

func TestBoltBatchPatterns(t *testing.T) {
	b := newTestBolt(t)
	ctx := context.Background()
	res := b.StorePatternsBatch(ctx, []*pattern.Pattern{{ID: "p-1"}, {ID: "p-2"}})
	assert.Equal(t, 2, res.Succeeded)

	res = b.DeletePatternsBatch(ctx, []string{"p-1", "p-2"})
	assert.Equal(t, 2, res.Succeeded)
}
