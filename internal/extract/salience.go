package extract

import (
	"strings"

	"github.com/memexlabs/memex/internal/episode"
)

// decisionKeywords mark a step's action as a critical decision.
var decisionKeywords = []string{"decide", "choose", "select", "determine", "evaluate"}

// minToolRunLength is the minimum length of a contiguous successful
// tool run counted as a tool_combination by the salient extractor.
const minToolRunLength = 3

// ExtractSalient derives the compact per-episode summary used for
// retrieval and learning: critical decisions, successful tool
// combinations, error-recovery pairs, and key insights.
func ExtractSalient(e *episode.Episode) *episode.SalientFeatures {
	sf := &episode.SalientFeatures{}

	for _, s := range e.Steps {
		if isDecisionStep(s) {
			sf.CriticalDecisions = append(sf.CriticalDecisions, s.Action)
		}
	}

	sf.ToolCombinations = contiguousSuccessfulRuns(e.Steps, minToolRunLength)
	sf.ErrorRecoveryPairs = errorRecoveryPairs(e.Steps)
	sf.KeyInsights = keyInsights(e)

	return sf
}

func isDecisionStep(s episode.ExecutionStep) bool {
	action := strings.ToLower(s.Action)
	for _, kw := range decisionKeywords {
		if strings.Contains(action, kw) {
			return true
		}
	}
	if s.Parameters != nil {
		if _, ok := s.Parameters["strategy"]; ok {
			return true
		}
		if _, ok := s.Parameters["approach"]; ok {
			return true
		}
	}
	return false
}

func isSuccess(s episode.ExecutionStep) bool {
	return s.Result != nil && s.Result.Kind == episode.StepSuccess
}

// contiguousSuccessfulRuns returns every maximal run of consecutive
// successful steps with length >= minLen, as the sequence of tool
// names in that run.
func contiguousSuccessfulRuns(steps []episode.ExecutionStep, minLen int) [][]string {
	var runs [][]string
	var current []string
	flush := func() {
		if len(current) >= minLen {
			runs = append(runs, append([]string(nil), current...))
		}
		current = nil
	}
	for _, s := range steps {
		if isSuccess(s) {
			current = append(current, s.Tool)
		} else {
			flush()
		}
	}
	flush()
	return runs
}

func errorRecoveryPairs(steps []episode.ExecutionStep) []episode.ErrorRecoveryPair {
	var pairs []episode.ErrorRecoveryPair
	for i := 1; i < len(steps); i++ {
		prev, cur := steps[i-1], steps[i]
		if prev.Result != nil && prev.Result.Kind == episode.StepError && isSuccess(cur) {
			pairs = append(pairs, episode.ErrorRecoveryPair{
				FailedStep:    prev.Number,
				RecoveredStep: cur.Number,
				Tool:          cur.Tool,
			})
		}
	}
	return pairs
}

func keyInsights(e *episode.Episode) []string {
	var insights []string
	if e.Reflection != nil {
		insights = append(insights, e.Reflection.Insights...)
	}
	if e.Outcome != nil {
		switch e.Outcome.Kind {
		case episode.OutcomeSuccess:
			if e.Outcome.Verdict != "" {
				insights = append(insights, e.Outcome.Verdict)
			}
		case episode.OutcomeFailure:
			if e.Outcome.Reason != "" {
				insights = append(insights, "failure: "+e.Outcome.Reason)
			}
		}
	}
	return insights
}
