package query

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memexlabs/memex/internal/episode"
	"github.com/memexlabs/memex/internal/index"
	"github.com/memexlabs/memex/internal/ttlcache"
)

func fixedNow() time.Time { return time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC) }

func buildIndexAndEpisodes(t *testing.T) (*index.Index, map[string]*episode.Episode) {
	t.Helper()
	idx := index.New()
	episodes := map[string]*episode.Episode{}

	add := func(id, domain, taskType, desc string, start time.Time) {
		idx.Insert(index.Entry{EpisodeID: id, Domain: domain, TaskType: taskType, Timestamp: start})
		episodes[id] = &episode.Episode{ID: id, Description: desc, TaskType: episode.TaskType(taskType), Context: episode.Context{Domain: domain}, StartTime: start}
	}

	add("recent-match", "web-api", "debugging", "fix flaky login test", fixedNow().Add(-24*time.Hour))
	add("old-match", "web-api", "debugging", "fix flaky login test", fixedNow().Add(-60*24*time.Hour))
	add("wrong-domain", "payments", "debugging", "fix flaky login test", fixedNow().Add(-24*time.Hour))

	return idx, episodes
}

func newTestEngine(t *testing.T, idx *index.Index, episodes map[string]*episode.Episode) *Engine {
	t.Helper()
	loader := func(ctx context.Context, id string) (*episode.Episode, error) {
		ep, ok := episodes[id]
		if !ok {
			return nil, assertNotFound{}
		}
		return ep, nil
	}
	cache := ttlcache.New(ttlcache.DefaultConfig())
	return New(idx, loader, cache, DefaultConfig(), fixedNow)
}

type assertNotFound struct{}

func (assertNotFound) Error() string { return "not found" }

func TestQueryRanksRecentMatchAboveOldMatch(t *testing.T) {
	idx, episodes := buildIndexAndEpisodes(t)
	e := newTestEngine(t, idx, episodes)

	results, err := e.Query(context.Background(), Request{Domain: "web-api", TaskType: "debugging", Text: "flaky login test", Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "recent-match", results[0].EpisodeID)
}

func TestQueryExcludesWrongDomain(t *testing.T) {
	idx, episodes := buildIndexAndEpisodes(t)
	e := newTestEngine(t, idx, episodes)

	results, err := e.Query(context.Background(), Request{Domain: "web-api", TaskType: "debugging", Text: "flaky login test", Limit: 10})
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "wrong-domain", r.EpisodeID)
	}
}

func TestQueryResultsAreCached(t *testing.T) {
	idx, episodes := buildIndexAndEpisodes(t)

	var loads atomic.Int64
	loader := func(ctx context.Context, id string) (*episode.Episode, error) {
		loads.Add(1)
		ep, ok := episodes[id]
		if !ok {
			return nil, assertNotFound{}
		}
		return ep, nil
	}
	cache := ttlcache.New(ttlcache.DefaultConfig())
	e := New(idx, loader, cache, DefaultConfig(), fixedNow)

	req := Request{Domain: "web-api", TaskType: "debugging", Text: "flaky login test", Limit: 10}
	_, err := e.Query(context.Background(), req)
	require.NoError(t, err)
	firstLoads := loads.Load()

	_, err = e.Query(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, firstLoads, loads.Load())
}

func TestQueryWithZeroLimitReturnsEmptyNotDefault(t *testing.T) {
	idx, episodes := buildIndexAndEpisodes(t)
	e := newTestEngine(t, idx, episodes)

	results, err := e.Query(context.Background(), Request{Domain: "web-api", TaskType: "debugging", Text: "flaky login test", Limit: 0})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestTemporalProximityDecaysWithAge(t *testing.T) {
	now := fixedNow()
	recent := temporalProximity(now.Add(-time.Hour), now)
	old := temporalProximity(now.Add(-60*24*time.Hour), now)
	assert.Greater(t, recent, old)
	assert.InDelta(t, 1.0, temporalProximity(now, now), 1e-9)
}

func TestDomainAndTaskTypeMatchScoring(t *testing.T) {
	assert.Equal(t, 1.0, domainMatch("web-api", "web-api"))
	assert.Equal(t, 0.0, domainMatch("web-api", "payments"))
	assert.Equal(t, 1.0, domainMatch("anything", ""))
	assert.Equal(t, 1.0, taskTypeMatch("debugging", ""))
	assert.Equal(t, 0.0, taskTypeMatch("debugging", "testing"))
}

func TestWordOverlapScoresIdenticalTextAsOne(t *testing.T) {
	assert.InDelta(t, 1.0, wordOverlap("fix flaky test", "fix flaky test"), 1e-9)
	assert.Less(t, wordOverlap("fix flaky test", "unrelated words here"), 0.5)
}
