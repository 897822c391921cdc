package protocol

import (
	"time"

	"github.com/memexlabs/memex/internal/ratelimit"
)

// HeadersFrom builds the response metadata every protocol response
// carries: Limit/Remaining/Reset always, plus RetryAfter when the
// caller is currently rate-limited.
func HeadersFrom(r ratelimit.Result) RateLimitHeaders {
	h := RateLimitHeaders{
		Limit:     int(r.Limit),
		Remaining: int(r.Remaining),
		Reset:     int(r.ResetAfter / time.Second),
	}
	if !r.Allowed && r.RetryAfter != nil {
		secs := int(*r.RetryAfter / time.Second)
		h.RetryAfterSeconds = &secs
	}
	return h
}
