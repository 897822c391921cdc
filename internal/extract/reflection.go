package extract

import (
	"fmt"
	"time"

	"github.com/memexlabs/memex/internal/episode"
)

// GenerateReflection derives a textual summary of successes,
// improvements, and insights from a completed episode's trace.
func GenerateReflection(e *episode.Episode, now func() time.Time) *episode.Reflection {
	r := &episode.Reflection{GeneratedAt: now()}

	if e.Outcome != nil {
		switch e.Outcome.Kind {
		case episode.OutcomeSuccess:
			r.Successes = append(r.Successes, e.Outcome.Verdict)
			for _, a := range e.Outcome.Artifacts {
				r.Successes = append(r.Successes, fmt.Sprintf("produced %s", a))
			}
		case episode.OutcomePartialSuccess:
			for _, c := range e.Outcome.Completed {
				r.Successes = append(r.Successes, fmt.Sprintf("completed %s", c))
			}
			for _, f := range e.Outcome.Failed {
				r.Improvements = append(r.Improvements, fmt.Sprintf("did not complete %s", f))
			}
		case episode.OutcomeFailure:
			r.Improvements = append(r.Improvements, e.Outcome.Reason)
		}
	}

	if rate := e.ErrorRate(); rate > 0 {
		r.Improvements = append(r.Improvements, fmt.Sprintf("%.0f%% of steps errored", rate*100))
	}
	if diversity := e.ToolDiversity(); diversity >= 3 {
		r.Insights = append(r.Insights, fmt.Sprintf("used %d distinct tools", diversity))
	}
	if hasErrorRecovery(e) {
		r.Insights = append(r.Insights, "recovered from at least one tool error")
	}

	return r
}
