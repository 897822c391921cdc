package extract

import (
	"time"

	"github.com/memexlabs/memex/internal/episode"
	"github.com/memexlabs/memex/internal/pattern"
)

// HeuristicConfig tunes the heuristic extractor's promotion gate.
type HeuristicConfig struct {
	MinSampleSize int
	MinConfidence float64
}

func DefaultHeuristicConfig() HeuristicConfig {
	return HeuristicConfig{MinSampleSize: 2, MinConfidence: 0.5}
}

// ExtractHeuristics groups decision points with identical condition
// text (the step's action) across the episode's steps, taking the
// first step's tool as the action, and emits a Heuristic iff
// sample_size >= min_sample_size AND confidence >= min_confidence,
// where confidence uses a 0.5 success weight for partial success and
// 1.0 for full success.
func ExtractHeuristics(e *episode.Episode, cfg HeuristicConfig, idGen func() string, now func() time.Time) []*pattern.Heuristic {
	type group struct {
		action      string
		sampleSize  int
		weightedSum float64
	}
	byCondition := map[string]*group{}
	var order []string

	for _, s := range e.Steps {
		if !isDecisionStep(s) {
			continue
		}
		g, ok := byCondition[s.Action]
		if !ok {
			g = &group{action: s.Tool}
			byCondition[s.Action] = g
			order = append(order, s.Action)
		}
		g.sampleSize++
		g.weightedSum += successWeight(s, e.Outcome)
	}

	var out []*pattern.Heuristic
	for _, cond := range order {
		g := byCondition[cond]
		successRate := g.weightedSum / float64(g.sampleSize)
		confidence := pattern.Confidence(successRate, g.sampleSize)
		if g.sampleSize < cfg.MinSampleSize || confidence < cfg.MinConfidence {
			continue
		}
		out = append(out, &pattern.Heuristic{
			ID:        idGen(),
			Condition: cond,
			Action:    g.action,
			Confidence: confidence,
			Evidence: pattern.Evidence{
				SampleSize:  g.sampleSize,
				SuccessRate: successRate,
				EpisodeIDs:  []string{e.ID},
			},
			CreatedAt: now(),
		})
	}
	return out
}

// successWeight is 1.0 for a step whose episode completed with full
// success, 0.5 for partial success, 0.0 otherwise — applied as the
// heuristic's confidence weighting.
func successWeight(s episode.ExecutionStep, outcome *episode.Outcome) float64 {
	if !isSuccess(s) {
		return 0
	}
	if outcome == nil {
		return 0
	}
	switch outcome.Kind {
	case episode.OutcomeSuccess:
		return 1.0
	case episode.OutcomePartialSuccess:
		return 0.5
	default:
		return 0
	}
}
