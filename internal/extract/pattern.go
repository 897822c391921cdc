package extract

import (
	"time"

	"github.com/memexlabs/memex/internal/episode"
	"github.com/memexlabs/memex/internal/pattern"
)

// PatternConfig tunes the pattern extractor and its validator.
type PatternConfig struct {
	SimilarityThreshold float64 // minimum precision/recall against the reference set
	MinOccurrence       int     // minimum occurrence_count for a tool-sequence pattern
}

func DefaultPatternConfig() PatternConfig {
	return PatternConfig{SimilarityThreshold: 0.3, MinOccurrence: 1}
}

// ExtractPatterns derives pattern candidates from a completed episode
// and promotes only those that pass validation against reference
// (existing, previously-accepted) patterns of the same kind. With no
// reference of a given kind yet on file, a candidate is promoted
// unconditionally (bootstrap case).
func ExtractPatterns(e *episode.Episode, reference []*pattern.Pattern, cfg PatternConfig, idGen func() string, now func() time.Time) []*pattern.Pattern {
	var out []*pattern.Pattern

	for _, run := range contiguousSuccessfulRuns(e.Steps, minToolRunLength) {
		cand := &pattern.Pattern{
			ID:               idGen(),
			Kind:             pattern.KindToolSequence,
			Context:          e.Context.Domain,
			Tools:            run,
			OccurrenceCount:  1,
			AvgLatency:       avgLatencyFor(e, run),
			SourceEpisodeIDs: []string{e.ID},
			SuccessRate:      1.0,
			CreatedAt:        now(),
		}
		if cand.OccurrenceCount < cfg.MinOccurrence {
			continue
		}
		if validatePattern(cand, reference, cfg.SimilarityThreshold) {
			cand.Effectiveness = cand.SuccessRate
			out = append(out, cand)
		}
	}

	for _, dp := range decisionPointCandidates(e, idGen, now) {
		if validatePattern(dp, reference, cfg.SimilarityThreshold) {
			dp.Effectiveness = dp.SuccessRate
			out = append(out, dp)
		}
	}

	for _, pair := range errorRecoveryPairs(e.Steps) {
		cand := &pattern.Pattern{
			ID:               idGen(),
			Kind:             pattern.KindErrorRecovery,
			Context:          e.Context.Domain,
			ErrorType:        "tool_error",
			RecoverySteps:    []string{pair.Tool},
			SourceEpisodeIDs: []string{e.ID},
			SuccessRate:      1.0,
			CreatedAt:        now(),
		}
		if validatePattern(cand, reference, cfg.SimilarityThreshold) {
			cand.Effectiveness = cand.SuccessRate
			out = append(out, cand)
		}
	}

	if e.Outcome != nil && e.Outcome.Kind == episode.OutcomeSuccess {
		cand := &pattern.Pattern{
			ID:                  idGen(),
			Kind:                pattern.KindContextPattern,
			Context:             e.Context.Domain,
			ContextFeatures:     map[string]string{"complexity": string(e.Context.Complexity)},
			RecommendedApproach: dominantTool(e),
			Evidence:            []string{e.ID},
			SourceEpisodeIDs:    []string{e.ID},
			SuccessRate:         1.0,
			CreatedAt:           now(),
		}
		if validatePattern(cand, reference, cfg.SimilarityThreshold) {
			cand.Effectiveness = cand.SuccessRate
			out = append(out, cand)
		}
	}

	return out
}

func avgLatencyFor(e *episode.Episode, tools []string) time.Duration {
	if len(tools) == 0 {
		return 0
	}
	var total time.Duration
	matched := 0
	toolSet := toSet(tools)
	for _, s := range e.Steps {
		if _, ok := toolSet[s.Tool]; ok {
			total += s.Latency
			matched++
		}
	}
	if matched == 0 {
		return 0
	}
	return total / time.Duration(matched)
}

func dominantTool(e *episode.Episode) string {
	counts := map[string]int{}
	best := ""
	bestCount := 0
	for _, s := range e.Steps {
		counts[s.Tool]++
		if counts[s.Tool] > bestCount {
			best, bestCount = s.Tool, counts[s.Tool]
		}
	}
	return best
}

// decisionPointCandidates groups decision steps by condition text,
// each promoted to a DecisionPoint pattern with aggregated outcome
// stats from this episode.
func decisionPointCandidates(e *episode.Episode, idGen func() string, now func() time.Time) []*pattern.Pattern {
	type agg struct {
		action string
		stats  pattern.OutcomeStats
	}
	byCondition := map[string]*agg{}
	var order []string

	for _, s := range e.Steps {
		if !isDecisionStep(s) {
			continue
		}
		a, ok := byCondition[s.Action]
		if !ok {
			a = &agg{action: s.Tool}
			byCondition[s.Action] = a
			order = append(order, s.Action)
		}
		if isSuccess(s) {
			a.stats.Successes++
		} else if s.Result != nil {
			a.stats.Failures++
		}
	}

	var out []*pattern.Pattern
	for _, cond := range order {
		a := byCondition[cond]
		out = append(out, &pattern.Pattern{
			ID:               idGen(),
			Kind:             pattern.KindDecisionPoint,
			Context:          e.Context.Domain,
			Condition:        cond,
			Action:           a.action,
			OutcomeStats:     a.stats,
			SourceEpisodeIDs: []string{e.ID},
			SuccessRate:      a.stats.SuccessRate(),
			CreatedAt:        now(),
		})
	}
	return out
}

// validatePattern computes precision/recall of cand against every
// reference pattern of the same kind, using Jaccard similarity on
// sequence-valued fields and word overlap on string-valued fields; it
// promotes cand if the best match's similarity clears the threshold,
// or unconditionally if there is no same-kind reference yet.
func validatePattern(cand *pattern.Pattern, reference []*pattern.Pattern, threshold float64) bool {
	var sameKind []*pattern.Pattern
	for _, r := range reference {
		if r.Kind == cand.Kind {
			sameKind = append(sameKind, r)
		}
	}
	if len(sameKind) == 0 {
		return true
	}

	best := 0.0
	for _, r := range sameKind {
		if sim := patternSimilarity(cand, r); sim > best {
			best = sim
		}
	}
	return best >= threshold
}

func patternSimilarity(a, b *pattern.Pattern) float64 {
	switch a.Kind {
	case pattern.KindToolSequence:
		return jaccard(a.Tools, b.Tools)
	case pattern.KindDecisionPoint:
		return 0.5*wordOverlap(a.Condition, b.Condition) + 0.5*wordOverlap(a.Action, b.Action)
	case pattern.KindErrorRecovery:
		return 0.5*wordOverlap(a.ErrorType, b.ErrorType) + 0.5*jaccard(a.RecoverySteps, b.RecoverySteps)
	case pattern.KindContextPattern:
		return wordOverlap(a.RecommendedApproach, b.RecommendedApproach)
	default:
		return 0
	}
}
