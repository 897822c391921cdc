// Package quality implements a quality gate and capacity manager:
// episodes scoring below a configured threshold are rejected before
// persistence, and once a maximum episode count is configured, the
// capacity manager selects eviction victims by policy. Grounded on a
// resilience.Classifier idiom (small, composable scoring functions
// feeding a single accept/reject gate).
package quality

import (
	"github.com/memexlabs/memex/internal/episode"
)

// Config tunes the quality score and rejection threshold.
type Config struct {
	RejectionThreshold float64
}

func DefaultConfig() Config {
	return Config{RejectionThreshold: 0.3}
}

// Score computes a [0,1] quality score from step count, outcome kind,
// error rate, artifact presence, and reflection density.
func Score(e *episode.Episode) float64 {
	score := 0.0

	switch stepCount := len(e.Steps); {
	case stepCount == 0:
		score += 0
	case stepCount < 3:
		score += 0.1
	default:
		score += 0.25
	}

	if e.Outcome != nil {
		switch e.Outcome.Kind {
		case episode.OutcomeSuccess:
			score += 0.3
		case episode.OutcomePartialSuccess:
			score += 0.15
		}
	}

	score += 0.2 * (1 - e.ErrorRate())

	if e.Outcome != nil && len(e.Outcome.Artifacts) > 0 {
		score += 0.15
	}

	if e.Reflection != nil {
		density := len(e.Reflection.Successes) + len(e.Reflection.Improvements) + len(e.Reflection.Insights)
		if density > 0 {
			score += 0.1
		}
	}

	if score > 1 {
		score = 1
	}
	return score
}

// Passes reports whether e's quality score clears cfg's rejection
// threshold.
func Passes(e *episode.Episode, cfg Config) (float64, bool) {
	s := Score(e)
	return s, s >= cfg.RejectionThreshold
}
