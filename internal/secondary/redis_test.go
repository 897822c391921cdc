package secondary

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/memexlabs/memex/internal/episode"
	"github.com/memexlabs/memex/internal/errs"
	"github.com/memexlabs/memex/internal/pattern"
	"github.com/memexlabs/memex/internal/relationship"
	"github.com/memexlabs/memex/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, 0)
}

func TestRedisStoreAndGetEpisode(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()
	e := &episode.Episode{ID: "ep-1", Description: "x", StartTime: time.Now(), Metadata: map[string]string{"team": "core"}}
	require.NoError(t, r.StoreEpisode(ctx, e))

	got, err := r.GetEpisode(ctx, "ep-1")
	require.NoError(t, err)
	assert.Equal(t, "x", got.Description)
}

func TestRedisGetMissingEpisodeIsNotFound(t *testing.T) {
	r := newTestRedis(t)
	_, err := r.GetEpisode(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrEpisodeNotFound)
}

func TestRedisGetMissingPatternIsNotFound(t *testing.T) {
	r := newTestRedis(t)
	_, err := r.GetPattern(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrPatternNotFound)
}

func TestRedisGetMissingHeuristicIsNotFound(t *testing.T) {
	r := newTestRedis(t)
	_, err := r.GetHeuristic(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrHeuristicNotFound)
}

func TestRedisQueryEpisodesByMetadata(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()
	require.NoError(t, r.StoreEpisode(ctx, &episode.Episode{ID: "ep-1", StartTime: time.Now(), Metadata: map[string]string{"team": "core"}}))
	require.NoError(t, r.StoreEpisode(ctx, &episode.Episode{ID: "ep-2", StartTime: time.Now(), Metadata: map[string]string{"team": "other"}}))

	ids, err := r.QueryEpisodesByMetadata(ctx, "team", "core")
	require.NoError(t, err)
	assert.Equal(t, []string{"ep-1"}, ids)
}

func TestRedisRelationshipsByDirection(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()
	require.NoError(t, r.StoreRelationship(ctx, relationship.Relationship{ID: "r-1", From: "a", To: "b", Type: relationship.TypeDependsOn}))

	out, err := r.GetRelationships(ctx, "a", store.DirectionOutgoing)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "r-1", out[0].ID)

	out, err = r.GetRelationships(ctx, "b", store.DirectionIncoming)
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestRedisClearAllRemovesEverything(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()
	require.NoError(t, r.StoreEpisode(ctx, &episode.Episode{ID: "ep-1", StartTime: time.Now()}))

	require.NoError(t, r.ClearAll(ctx))
	_, err := r.GetEpisode(ctx, "ep-1")
	assert.Error(t, err)
}

func TestRedisBatchPatternsReportsPerElementFailures(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()
	require.NoError(t, r.StorePattern(ctx, &pattern.Pattern{ID: "p-1"}))

	_, res := r.GetPatternsBatch(ctx, []string{"p-1", "does-not-exist"})
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
}
