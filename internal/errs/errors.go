// Package errs defines the error taxonomy shared by every memex component.
//
// Every operation-level failure is classified into one of the Kind values
// below; callers use errors.Is against the sentinel values, or KindOf to
// recover the taxonomy classification for mapping onto CLI exit codes or
// protocol error codes.
package errs

import (
	"errors"
	"fmt"
)

// Kind is the error taxonomy from the engine's external-interface contract.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindValidationFailed Kind = "validation_failed"
	KindCircuitOpen      Kind = "circuit_open"
	KindRateLimited      Kind = "rate_limited"
	KindStorage          Kind = "storage"
	KindSerialization    Kind = "serialization"
	KindCompression      Kind = "compression"
	KindInvalidArgument  Kind = "invalid_argument"
	KindTraversalError   Kind = "traversal_error"
	KindInternal         Kind = "internal"
)

// Sentinel errors for errors.Is comparisons: plain sentinel values
// wrapped by structured errors.
var (
	ErrEpisodeNotFound   = errors.New("episode not found")
	ErrPatternNotFound   = errors.New("pattern not found")
	ErrHeuristicNotFound = errors.New("heuristic not found")
	ErrNotComplete       = errors.New("episode is not complete")
	ErrAlreadyComplete   = errors.New("episode is already complete")
	ErrQualityRejected   = errors.New("episode rejected by quality gate")
	ErrCircuitOpen       = errors.New("circuit breaker is open")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrWouldCycle        = errors.New("relationship would create a cycle")
	ErrDuplicateEdge     = errors.New("relationship already exists")
	ErrSelfRelationship  = errors.New("relationship cannot reference itself")
	ErrNoPath            = errors.New("no path between episodes")
	ErrThresholdExceeded = errors.New("compressed payload exceeds maximum size")
)

// Error is the structured error carried across every component boundary:
// an operation name, a taxonomy kind, an optional entity id, a message,
// and a wrapped cause — the same shape as a FrameworkError.
type Error struct {
	Op      string
	Kind    Kind
	ID      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Op != "" && e.Err != nil {
		if e.ID != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.ID, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a structured Error.
func New(op string, kind Kind, id string, err error) *Error {
	return &Error{Op: op, Kind: kind, ID: id, Err: err}
}

// Wrap attaches a kind and operation name to an arbitrary error.
func Wrap(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf recovers the taxonomy Kind from an error, defaulting to Internal
// when the error does not carry one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrEpisodeNotFound), errors.Is(err, ErrPatternNotFound), errors.Is(err, ErrHeuristicNotFound):
		return KindNotFound
	case errors.Is(err, ErrQualityRejected):
		return KindValidationFailed
	case errors.Is(err, ErrCircuitOpen):
		return KindCircuitOpen
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrWouldCycle), errors.Is(err, ErrNoPath):
		return KindTraversalError
	}
	return KindInternal
}

// IsNotFound reports whether err is classified as NotFound.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsValidationFailed reports whether err is classified as ValidationFailed.
func IsValidationFailed(err error) bool { return KindOf(err) == KindValidationFailed }

// IsCircuitOpen reports whether err is classified as CircuitOpen.
func IsCircuitOpen(err error) bool { return KindOf(err) == KindCircuitOpen }

// IsRateLimited reports whether err is classified as RateLimited.
func IsRateLimited(err error) bool { return KindOf(err) == KindRateLimited }
