package forgeapi

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterBurstThenThrottles(t *testing.T) {
	ctx := context.Background()
	rl := NewRateLimiter()

	start := time.Now()
	for i := 0; i < DefaultBurst; i++ {
		assert.NoError(t, rl.Wait(ctx))
	}
	burstElapsed := time.Since(start)
	assert.Less(t, burstElapsed, 500*time.Millisecond, "the initial burst should drain near-instantly")

	throttleStart := time.Now()
	assert.NoError(t, rl.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(throttleStart), 400*time.Millisecond, "the call after the burst must wait for a token")
}

func TestRateLimiterRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rl := NewRateLimiter()
	for i := 0; i < DefaultBurst; i++ {
		_ = rl.Wait(context.Background())
	}
	assert.Error(t, rl.Wait(ctx), "an already-cancelled context must not block forever")
}
