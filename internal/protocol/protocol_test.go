package protocol

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/memexlabs/memex/internal/errs"
	"github.com/memexlabs/memex/internal/ratelimit"
)

func TestErrorFromMapsRateLimitAndCircuitOpenToInternal(t *testing.T) {
	rl := errorFrom(errs.Wrap("op", errs.KindRateLimited, errs.ErrRateLimited))
	assert.Equal(t, CodeInternal, rl.Code)

	co := errorFrom(errs.Wrap("op", errs.KindCircuitOpen, errs.ErrCircuitOpen))
	assert.Equal(t, CodeInternal, co.Code)
}

func TestErrorFromMapsValidationToBadParams(t *testing.T) {
	e := errorFrom(errs.Wrap("op", errs.KindValidationFailed, errors.New("nope")))
	assert.Equal(t, CodeBadParams, e.Code)
}

func TestHeadersFromCarriesRetryAfterOnlyWhenDenied(t *testing.T) {
	retry := 5 * time.Second
	denied := ratelimit.Result{Allowed: false, Remaining: 0, Limit: 10, ResetAfter: 2 * time.Second, RetryAfter: &retry}
	h := HeadersFrom(denied)
	assert.Equal(t, 10, h.Limit)
	assert.Equal(t, 0, h.Remaining)
	assert.Equal(t, 2, h.Reset)
	assert.NotNil(t, h.RetryAfterSeconds)
	assert.Equal(t, 5, *h.RetryAfterSeconds)

	allowed := ratelimit.Result{Allowed: true, Remaining: 9, Limit: 10, ResetAfter: time.Second}
	h2 := HeadersFrom(allowed)
	assert.Nil(t, h2.RetryAfterSeconds)
}
