package quality

import (
	"math"
	"sort"
	"time"

	"github.com/memexlabs/memex/internal/episode"
)

// Policy selects eviction victims when capacity is exceeded.
type Policy string

const (
	PolicyLRU               Policy = "lru"
	PolicyRelevanceWeighted Policy = "relevance_weighted"
)

// CapacityConfig activates the capacity manager only when MaxEpisodes > 0.
type CapacityConfig struct {
	MaxEpisodes int
	Policy      Policy
}

// Candidate is the minimal per-episode view the capacity manager needs
// to rank eviction victims, decoupled from the full Episode so callers
// can build it from an index scan without rehydrating every episode.
type Candidate struct {
	EpisodeID    string
	LastAccess   time.Time
	CompletedAt  time.Time
	Reward       float64
	QualityScore float64
}

// SelectVictims returns the episode ids to evict so that len(all)
// drops to cfg.MaxEpisodes, or nil if capacity is not configured or
// not exceeded.
func SelectVictims(all []Candidate, cfg CapacityConfig) []string {
	if cfg.MaxEpisodes <= 0 || len(all) <= cfg.MaxEpisodes {
		return nil
	}
	overflow := len(all) - cfg.MaxEpisodes

	ranked := make([]Candidate, len(all))
	copy(ranked, all)

	switch cfg.Policy {
	case PolicyRelevanceWeighted:
		sort.Slice(ranked, func(i, j int) bool {
			return compositeScore(ranked[i]) < compositeScore(ranked[j])
		})
	default: // PolicyLRU
		sort.Slice(ranked, func(i, j int) bool {
			return effectiveTime(ranked[i]).Before(effectiveTime(ranked[j]))
		})
	}

	victims := make([]string, 0, overflow)
	for i := 0; i < overflow; i++ {
		victims = append(victims, ranked[i].EpisodeID)
	}
	return victims
}

func effectiveTime(c Candidate) time.Time {
	if !c.LastAccess.IsZero() {
		return c.LastAccess
	}
	return c.CompletedAt
}

// compositeScore blends recency, reward, and quality so a high-quality
// episode is preserved even when older.
func compositeScore(c Candidate) float64 {
	recency := recencyScore(effectiveTime(c))
	return recency * 0.3 + c.Reward*0.35 + c.QualityScore*0.35
}

// recencyScore decays exponentially with a 30-day half-life, matching
// the retrieval engine's temporal-proximity signal so both subsystems
// rank "old" consistently.
func recencyScore(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	const halfLife = 30 * 24 * time.Hour
	age := time.Since(t)
	if age < 0 {
		age = 0
	}
	return math.Exp(-math.Ln2 * float64(age) / float64(halfLife))
}

// CandidateFromEpisode builds a Candidate's time fields from an
// episode, defaulting LastAccess to the episode's completion time.
func CandidateFromEpisode(e *episode.Episode, reward, qualityScore float64, lastAccess time.Time) Candidate {
	c := Candidate{EpisodeID: e.ID, Reward: reward, QualityScore: qualityScore, LastAccess: lastAccess}
	if e.EndTime != nil {
		c.CompletedAt = *e.EndTime
	}
	return c
}
