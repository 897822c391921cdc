package episode

import (
	"strings"

	"github.com/memexlabs/memex/internal/errs"
)

const (
	minDescriptionLen = 1
	maxDescriptionLen = 8192
	maxSteps          = 10000
)

// ValidateStructure checks the structural invariants §3 requires of a
// completed episode: non-empty description, size bounds, and strictly
// monotonic step numbering starting at 1.
func ValidateStructure(e *Episode) error {
	desc := strings.TrimSpace(e.Description)
	if len(desc) < minDescriptionLen {
		return errs.New("episode.validate", errs.KindValidationFailed, e.ID, errs.ErrQualityRejected)
	}
	if len(desc) > maxDescriptionLen {
		return errs.Wrap("episode.validate", errs.KindValidationFailed, errs.ErrQualityRejected)
	}
	if len(e.Steps) > maxSteps {
		return errs.Wrap("episode.validate", errs.KindValidationFailed, errs.ErrQualityRejected)
	}
	for i, s := range e.Steps {
		if s.Number != i+1 {
			return errs.Wrap("episode.validate", errs.KindValidationFailed, errs.ErrQualityRejected)
		}
	}
	return nil
}

// CanAppendStep reports whether a step may still be appended: steps are
// append-forbidden once the episode is completed.
func CanAppendStep(e *Episode) bool {
	return !e.IsComplete()
}
