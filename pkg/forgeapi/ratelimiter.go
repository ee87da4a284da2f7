package forgeapi

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMeanRate and DefaultBurst implement spec §4.1's "mean one
// request/second and burst ten" token bucket — applied unconditionally,
// even for authenticated high-ceiling accounts.
const (
	DefaultMeanRate = rate.Limit(1)
	DefaultBurst    = 10
	maxJitter       = 50 * time.Millisecond
)

// RateLimiter wraps golang.org/x/time/rate with the jitter spec §4.1 calls
// for ("every caller waits on the bucket, with small jitter").
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter builds the Gateway's shared bucket. Every Gateway instance
// owns exactly one; the bucket is never mutated except through Wait.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(DefaultMeanRate, DefaultBurst)}
}

// Wait blocks until a token is available, then sleeps an additional small
// jitter before returning, so concurrent callers release in a staggered
// fashion rather than in lockstep.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	jitter := time.Duration(rand.Int63n(int64(maxJitter)))
	select {
	case <-time.After(jitter):
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
