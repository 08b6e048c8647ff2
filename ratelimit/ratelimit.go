package ratelimit

import (
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// NewLimiter paces outgoing requests to rps requests per second with a burst
// of the same size. Zero or negative rps disables pacing.
func NewLimiter(rps int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}

	return rate.NewLimiter(rate.Limit(rps), rps)
}

// Jitter returns d plus a random extra of up to half of d.
func Jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}

	return d + rand.N(d/2+1) //nolint:gosec
}
