// Package breaker implements the three-state circuit breaker protecting
// recoverable operations (principally durable-store writes), grounded
// on a resilience.CircuitBreaker idiom: mutex-guarded state, a pluggable
// MetricsCollector, structured logging, and panic-safe execution.
package breaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/memexlabs/memex/internal/errs"
	"github.com/memexlabs/memex/internal/logging"
)

// State is the circuit breaker's current state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// MetricsCollector receives circuit breaker lifecycle events, a
// CircuitBreaker's MetricsCollector idiom for success/failure/state-change
// hooks.
type MetricsCollector interface {
	RecordSuccess(name string)
	RecordFailure(name string)
	RecordStateChange(name string, from, to State)
	RecordRejection(name string)
}

type noopMetrics struct{}

func (noopMetrics) RecordSuccess(string)                 {}
func (noopMetrics) RecordFailure(string)                 {}
func (noopMetrics) RecordStateChange(string, State, State) {}
func (noopMetrics) RecordRejection(string)               {}

// Classifier determines whether an error counts toward the failure
// threshold. Non-recoverable errors are returned unchanged and never
// affect circuit state.
type Classifier func(error) bool

// DefaultClassifier treats every non-nil error as recoverable except
// those classified as NotFound, InvalidArgument, or ValidationFailed.
func DefaultClassifier(err error) bool {
	if err == nil {
		return false
	}
	switch errs.KindOf(err) {
	case errs.KindNotFound, errs.KindInvalidArgument, errs.KindValidationFailed:
		return false
	default:
		return true
	}
}

// Config configures a CircuitBreaker.
type Config struct {
	Name               string
	FailureThreshold   int
	Timeout            time.Duration
	SuccessThreshold   int
	HalfOpenMaxAttempts int
	Classifier         Classifier
	Logger             logging.Logger
	Metrics            MetricsCollector
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		FailureThreshold:    5,
		Timeout:             30 * time.Second,
		SuccessThreshold:    2,
		HalfOpenMaxAttempts: 3,
		Classifier:          DefaultClassifier,
		Logger:              logging.NoOp{},
		Metrics:             noopMetrics{},
	}
}

// CircuitBreaker is a three-state fail-fast wrapper around a recoverable
// failing operation.
type CircuitBreaker struct {
	cfg Config

	mu                 sync.Mutex
	state              State
	consecutiveFailures int
	openedAt           time.Time
	halfOpenAttempts   int
	halfOpenSuccesses  int

	totalCalls     uint64
	rejectedCalls  uint64
}

// New creates a CircuitBreaker, filling unset fields with DefaultConfig.
// Timeout is taken as given (a negative value counts as unset), so a zero
// Timeout lets the first call after opening go straight to half-open.
func New(cfg Config) *CircuitBreaker {
	d := DefaultConfig(cfg.Name)
	if cfg.FailureThreshold > 0 {
		d.FailureThreshold = cfg.FailureThreshold
	}
	if cfg.Timeout >= 0 {
		d.Timeout = cfg.Timeout
	}
	if cfg.SuccessThreshold > 0 {
		d.SuccessThreshold = cfg.SuccessThreshold
	}
	if cfg.HalfOpenMaxAttempts > 0 {
		d.HalfOpenMaxAttempts = cfg.HalfOpenMaxAttempts
	}
	if cfg.Classifier != nil {
		d.Classifier = cfg.Classifier
	}
	if cfg.Logger != nil {
		d.Logger = cfg.Logger
	}
	if cfg.Metrics != nil {
		d.Metrics = cfg.Metrics
	}
	return &CircuitBreaker{cfg: d, state: Closed}
}

// State returns the current state. It does not itself move Open to
// HalfOpen; that transition happens on the next Call once the timeout
// has elapsed.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) maybeTransitionToHalfOpenLocked() {
	if cb.state == Open && time.Since(cb.openedAt) >= cb.cfg.Timeout {
		cb.transitionLocked(HalfOpen)
		cb.halfOpenAttempts = 0
		cb.halfOpenSuccesses = 0
	}
}

func (cb *CircuitBreaker) transitionLocked(to State) {
	from := cb.state
	cb.state = to
	if from != to {
		cb.cfg.Metrics.RecordStateChange(cb.cfg.Name, from, to)
		cb.cfg.Logger.Info("circuit breaker state change", map[string]interface{}{
			"name": cb.cfg.Name, "from": from.String(), "to": to.String(),
		})
	}
}

// Call executes fn under circuit breaker protection. Only errors the
// Classifier deems recoverable count toward the failure threshold.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	cb.mu.Lock()
	cb.totalCalls++
	cb.maybeTransitionToHalfOpenLocked()

	switch cb.state {
	case Open:
		cb.rejectedCalls++
		cb.cfg.Metrics.RecordRejection(cb.cfg.Name)
		cb.mu.Unlock()
		return errs.Wrap("breaker.call", errs.KindCircuitOpen, errs.ErrCircuitOpen)
	case HalfOpen:
		if cb.halfOpenAttempts >= cb.cfg.HalfOpenMaxAttempts {
			cb.transitionLocked(Open)
			cb.openedAt = time.Now()
			cb.rejectedCalls++
			cb.cfg.Metrics.RecordRejection(cb.cfg.Name)
			cb.mu.Unlock()
			return errs.Wrap("breaker.call", errs.KindCircuitOpen, errs.ErrCircuitOpen)
		}
		cb.halfOpenAttempts++
	}
	cb.mu.Unlock()

	err := cb.runSafely(ctx, fn)
	cb.afterCall(err)
	return err
}

func (cb *CircuitBreaker) runSafely(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.New("breaker.call", errs.KindInternal, "", fmt.Errorf("panic: %v", r))
		}
	}()
	return fn(ctx)
}

func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	recoverable := cb.cfg.Classifier(err)
	if err != nil && !recoverable {
		// Non-recoverable: return unchanged, no state effect.
		return
	}

	switch cb.state {
	case Closed:
		if err == nil {
			cb.consecutiveFailures = 0
			cb.cfg.Metrics.RecordSuccess(cb.cfg.Name)
			return
		}
		cb.consecutiveFailures++
		cb.cfg.Metrics.RecordFailure(cb.cfg.Name)
		if cb.consecutiveFailures >= cb.cfg.FailureThreshold {
			cb.transitionLocked(Open)
			cb.openedAt = time.Now()
		}
	case HalfOpen:
		if err == nil {
			cb.halfOpenSuccesses++
			cb.cfg.Metrics.RecordSuccess(cb.cfg.Name)
			if cb.halfOpenSuccesses >= cb.cfg.SuccessThreshold {
				cb.transitionLocked(Closed)
				cb.consecutiveFailures = 0
			}
		} else {
			cb.cfg.Metrics.RecordFailure(cb.cfg.Name)
			cb.transitionLocked(Open)
			cb.openedAt = time.Now()
		}
	case Open:
		// Shouldn't happen: Call rejects before invoking fn while Open.
	}
}

// Reset forces the breaker back to Closed with counters zeroed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionLocked(Closed)
	cb.consecutiveFailures = 0
	cb.halfOpenAttempts = 0
	cb.halfOpenSuccesses = 0
}

// Stats returns call counters for monitoring.
type Stats struct {
	TotalCalls    uint64
	RejectedCalls uint64
	State         State
}

// Stats returns the current counters.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Stats{TotalCalls: cb.totalCalls, RejectedCalls: cb.rejectedCalls, State: cb.state}
}

// BackoffDelay implements the exponential backoff helper from §4.8:
// delay(n) = min(base*2^n, max).
func BackoffDelay(n int, base, max time.Duration) time.Duration {
	d := base
	for i := 0; i < n; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
