package quality

import (
	"testing"
	"time"

	"github.com/memexlabs/memex/internal/episode"
	"github.com/stretchr/testify/assert"
)

func TestScoreRejectsEmptyEpisode(t *testing.T) {
	e := &episode.Episode{}
	score, ok := Passes(e, DefaultConfig())
	assert.False(t, ok)
	assert.Less(t, score, DefaultConfig().RejectionThreshold)
}

func TestScoreAcceptsWellFormedSuccess(t *testing.T) {
	e := &episode.Episode{
		Steps: []episode.ExecutionStep{
			{Number: 1, Tool: "a", Result: &episode.StepResult{Kind: episode.StepSuccess}},
			{Number: 2, Tool: "b", Result: &episode.StepResult{Kind: episode.StepSuccess}},
			{Number: 3, Tool: "c", Result: &episode.StepResult{Kind: episode.StepSuccess}},
		},
		Outcome: &episode.Outcome{Kind: episode.OutcomeSuccess, Artifacts: []string{"x"}},
		Reflection: &episode.Reflection{Successes: []string{"done"}},
	}
	score, ok := Passes(e, DefaultConfig())
	assert.True(t, ok)
	assert.Greater(t, score, 0.5)
}

func TestSelectVictimsNoopUnderCapacity(t *testing.T) {
	cfg := CapacityConfig{MaxEpisodes: 10, Policy: PolicyLRU}
	victims := SelectVictims([]Candidate{{EpisodeID: "a"}}, cfg)
	assert.Empty(t, victims)
}

func TestSelectVictimsNoopWhenUnconfigured(t *testing.T) {
	victims := SelectVictims([]Candidate{{EpisodeID: "a"}, {EpisodeID: "b"}}, CapacityConfig{})
	assert.Empty(t, victims)
}

func TestSelectVictimsLRUEvictsOldest(t *testing.T) {
	now := time.Now()
	cands := []Candidate{
		{EpisodeID: "old", LastAccess: now.Add(-time.Hour)},
		{EpisodeID: "new", LastAccess: now},
	}
	victims := SelectVictims(cands, CapacityConfig{MaxEpisodes: 1, Policy: PolicyLRU})
	assert.Equal(t, []string{"old"}, victims)
}

func TestSelectVictimsRelevanceWeightedPreservesHighQuality(t *testing.T) {
	now := time.Now()
	cands := []Candidate{
		{EpisodeID: "old-but-good", LastAccess: now.Add(-60 * 24 * time.Hour), Reward: 0.9, QualityScore: 0.9},
		{EpisodeID: "new-but-bad", LastAccess: now, Reward: 0.1, QualityScore: 0.1},
	}
	victims := SelectVictims(cands, CapacityConfig{MaxEpisodes: 1, Policy: PolicyRelevanceWeighted})
	assert.Equal(t, []string{"new-but-bad"}, victims, "low quality/reward should be evicted even though it's more recent")
}
