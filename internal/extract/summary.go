package extract

import (
	"fmt"
	"strings"

	"github.com/memexlabs/memex/internal/episode"
)

// SummaryProvider produces a semantic summary for an episode, e.g. by
// calling out to an embedding/LLM service. Best-effort: callers must
// log and ignore failures rather than block completion on them.
type SummaryProvider interface {
	Summarize(e *episode.Episode) (string, error)
}

// LocalFallback is the deterministic, dependency-free semantic
// summary used when no external SummaryProvider is configured, in
// place of a mock embedding path or a hard error.
type LocalFallback struct{}

func (LocalFallback) Summarize(e *episode.Episode) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s task in %s", e.TaskType, e.Context.Domain)
	if e.Outcome != nil {
		fmt.Fprintf(&b, ", %s", e.Outcome.Kind)
	}
	fmt.Fprintf(&b, ", %d steps across %d tools", len(e.Steps), e.ToolDiversity())
	if rate := e.ErrorRate(); rate > 0 {
		fmt.Fprintf(&b, ", %.0f%% error rate", rate*100)
	}
	return b.String(), nil
}

var _ SummaryProvider = LocalFallback{}
