package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/memexlabs/memex/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpensAfterFailureThreshold(t *testing.T) {
	cb := New(Config{Name: "t", FailureThreshold: 2, Timeout: time.Hour})
	boom := errors.New("boom")

	err1 := cb.Call(context.Background(), func(context.Context) error { return boom })
	require.Error(t, err1)
	assert.Equal(t, Closed, cb.State())

	err2 := cb.Call(context.Background(), func(context.Context) error { return boom })
	require.Error(t, err2)
	assert.Equal(t, Open, cb.State())

	called := false
	err3 := cb.Call(context.Background(), func(context.Context) error { called = true; return nil })
	require.Error(t, err3)
	assert.False(t, called, "operation must not be invoked while open")
	assert.True(t, errs.IsCircuitOpen(err3))
}

func TestRecoversThroughHalfOpen(t *testing.T) {
	cb := New(Config{Name: "t", FailureThreshold: 2, Timeout: 0, SuccessThreshold: 1})
	boom := errors.New("boom")

	_ = cb.Call(context.Background(), func(context.Context) error { return boom })
	_ = cb.Call(context.Background(), func(context.Context) error { return boom })
	assert.Equal(t, Open, cb.State())

	// Timeout is 0, so the very next check transitions to half-open.
	err := cb.Call(context.Background(), func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, Closed, cb.State())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := New(Config{Name: "t", FailureThreshold: 1, Timeout: 0, SuccessThreshold: 2})
	boom := errors.New("boom")

	_ = cb.Call(context.Background(), func(context.Context) error { return boom })
	assert.Equal(t, Open, cb.State())

	err := cb.Call(context.Background(), func(context.Context) error { return boom })
	require.Error(t, err)
	assert.Equal(t, Open, cb.State())
}

func TestNonRecoverableErrorDoesNotCountAsFailure(t *testing.T) {
	cb := New(Config{Name: "t", FailureThreshold: 1, Timeout: time.Hour})
	nf := errs.Wrap("op", errs.KindNotFound, errs.ErrEpisodeNotFound)

	err := cb.Call(context.Background(), func(context.Context) error { return nf })
	require.Error(t, err)
	assert.Equal(t, Closed, cb.State())
}

func TestPanicIsCapturedAsInternalError(t *testing.T) {
	cb := New(Config{Name: "t", FailureThreshold: 5, Timeout: time.Hour})
	err := cb.Call(context.Background(), func(context.Context) error { panic("boom") })
	require.Error(t, err)
	assert.Equal(t, errs.KindInternal, errs.KindOf(err))
}

func TestBackoffDelayCapsAtMax(t *testing.T) {
	base := 100 * time.Millisecond
	max := 1 * time.Second
	assert.Equal(t, 200*time.Millisecond, BackoffDelay(1, base, max))
	assert.Equal(t, max, BackoffDelay(10, base, max))
}

func TestReset(t *testing.T) {
	cb := New(Config{Name: "t", FailureThreshold: 1, Timeout: time.Hour})
	_ = cb.Call(context.Background(), func(context.Context) error { return errors.New("x") })
	assert.Equal(t, Open, cb.State())
	cb.Reset()
	assert.Equal(t, Closed, cb.State())
}
