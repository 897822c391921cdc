// Package extract implements the pattern, heuristic, salience,
// reward, and reflection extractors, run at episode-completion time
// by the learning engine. Grounded on an orchestration synthesis-helper
// idiom (plain functions over a completed record, no hidden state) and
// generalized to the episode lifecycle's reward/pattern/heuristic
// artifacts.
package extract

import (
	"time"

	"github.com/memexlabs/memex/internal/episode"
)

// RewardConfig tunes the reward formula's tunable constants; beyond the
// 0.4/0.6 split and the complexity_bonus enumeration, these are not
// pinned to specific numeric values, so the remaining constants are an
// implementation choice documented on the helpers below.
type RewardConfig struct {
	ExpectedDuration time.Duration
	TestCoverageKey  string // episode.Metadata key holding a "0.0".."1.0" string
}

func DefaultRewardConfig() RewardConfig {
	return RewardConfig{ExpectedDuration: 5 * time.Minute, TestCoverageKey: "test_coverage"}
}

// CalculateReward computes the episode's scalar reward:
//
//	total = base * (0.4*duration_factor + 0.6*step_efficiency) * complexity_bonus * quality_multiplier + learning_bonus
func CalculateReward(e *episode.Episode, patternsDiscovered int, cfg RewardConfig) float64 {
	if e.Outcome == nil {
		return 0
	}
	base := e.Outcome.SubtaskFraction()
	durationFactor := durationFactor(e, cfg.ExpectedDuration)
	stepEfficiency := 1 - e.ErrorRate()
	complexityBonus := complexityBonus(e.Context.Complexity)
	qualityMultiplier := qualityMultiplier(e, cfg)
	learningBonus := learningBonus(e, patternsDiscovered)

	total := base*(0.4*durationFactor+0.6*stepEfficiency)*complexityBonus*qualityMultiplier + learningBonus
	if total < 0 {
		return 0
	}
	return total
}

func durationFactor(e *episode.Episode, expected time.Duration) float64 {
	if e.EndTime == nil || expected <= 0 {
		return 1
	}
	elapsed := e.EndTime.Sub(e.StartTime)
	if elapsed <= 0 {
		return 1
	}
	f := float64(expected) / float64(elapsed)
	if f > 1 {
		f = 1
	}
	return f
}

func complexityBonus(c episode.Complexity) float64 {
	switch c {
	case episode.ComplexityModerate:
		return 1.1
	case episode.ComplexityComplex:
		return 1.2
	default:
		return 1.0
	}
}

// qualityMultiplier blends metadata-declared test coverage with the
// observed step error rate as 0.5 + 0.5*coverage - 0.3*error_rate,
// floored at 0: it reaches 1.0 at full coverage with no errors, and
// coverage defaults to 0.5 when the metadata key is absent.
func qualityMultiplier(e *episode.Episode, cfg RewardConfig) float64 {
	coverage := 0.5
	if raw, ok := e.Metadata[cfg.TestCoverageKey]; ok {
		if v, err := parseUnitFloat(raw); err == nil {
			coverage = v
		}
	}
	errorRate := e.ErrorRate()
	m := 0.5 + 0.5*coverage - 0.3*errorRate
	if m < 0 {
		m = 0
	}
	return m
}

// learningBonus rewards pattern discovery, error recovery, tool
// diversity (two or more distinct tools), and a high success rate,
// each contributing a small additive term.
func learningBonus(e *episode.Episode, patternsDiscovered int) float64 {
	bonus := 0.0
	if patternsDiscovered > 0 {
		bonus += 0.05 * float64(min(patternsDiscovered, 4))
	}
	if hasErrorRecovery(e) {
		bonus += 0.05
	}
	if diversity := e.ToolDiversity(); diversity > 1 {
		bonus += 0.01 * float64(min(diversity, 5))
	}
	if e.Outcome != nil && e.Outcome.Kind == episode.OutcomeSuccess && e.ErrorRate() == 0 {
		bonus += 0.05
	}
	return bonus
}

func hasErrorRecovery(e *episode.Episode) bool {
	for i := 1; i < len(e.Steps); i++ {
		prev, cur := e.Steps[i-1], e.Steps[i]
		if prev.Result != nil && prev.Result.Kind == episode.StepError &&
			cur.Result != nil && cur.Result.Kind == episode.StepSuccess {
			return true
		}
	}
	return false
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
