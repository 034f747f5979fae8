package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"flico/pkg/metrics"
)

// Limiter defines the interface for pacing outgoing API calls
type Limiter interface {
	// Wait blocks until the limiter allows another request or ctx is done
	Wait(ctx context.Context) error
	// Allow reports whether a request may proceed right now
	Allow() bool
}

// TokenBucket paces requests with a token bucket refilled continuously.
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket creates a limiter allowing requestsPerMinute on average with
// bursts of up to burst requests. A non-positive rate disables pacing.
func NewTokenBucket(requestsPerMinute, burst int) *TokenBucket {
	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(requestsPerMinute))
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucket{limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until a token is available
func (tb *TokenBucket) Wait(ctx context.Context) error {
	start := time.Now()
	if err := tb.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObservePacingDelay(waited)
	}
	return nil
}

// Allow checks if a request can proceed without waiting
func (tb *TokenBucket) Allow() bool {
	return tb.limiter.Allow()
}

// Unlimited never blocks.
type Unlimited struct{}

// Wait returns immediately unless ctx is already done
func (Unlimited) Wait(ctx context.Context) error {
	return ctx.Err()
}

// Allow always returns true
func (Unlimited) Allow() bool {
	return true
}
