package main

import (
	"errors"
	"testing"

	"github.com/memexlabs/memex/internal/errs"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "not found",
			err:  errs.New("get-episode", errs.KindNotFound, "ep-1", errs.ErrEpisodeNotFound),
			want: exitNotFound,
		},
		{
			name: "validation failed",
			err:  errs.New("log-step", errs.KindValidationFailed, "ep-1", errors.New("bad step")),
			want: exitValidation,
		},
		{
			name: "quality rejected shares ValidationFailed's Kind but gets its own code",
			err:  errs.New("complete-episode", errs.KindValidationFailed, "ep-1", errs.ErrQualityRejected),
			want: exitQualityRejected,
		},
		{
			name: "circuit open",
			err:  errs.New("complete-episode", errs.KindCircuitOpen, "ep-1", errs.ErrCircuitOpen),
			want: exitCircuitOpen,
		},
		{
			name: "rate limited",
			err:  errs.New("start-episode", errs.KindRateLimited, "", errs.ErrRateLimited),
			want: exitRateLimited,
		},
		{
			name: "invalid argument maps to usage",
			err:  errs.New("add-relationship", errs.KindInvalidArgument, "", errors.New("missing type")),
			want: exitUsage,
		},
		{
			name: "unclassified error is unexpected",
			err:  errors.New("boom"),
			want: exitUnexpected,
		},
		{
			name: "internal kind is unexpected",
			err:  errs.New("retrieve-context", errs.KindInternal, "", errors.New("boom")),
			want: exitUnexpected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Fatalf("exitCodeFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExitCodeForNil(t *testing.T) {
	// main only calls exitCodeFor on a non-nil error, but the mapping
	// itself should not panic on a nil input.
	if got := exitCodeFor(nil); got != exitUnexpected {
		t.Fatalf("exitCodeFor(nil) = %d, want %d", got, exitUnexpected)
	}
}
