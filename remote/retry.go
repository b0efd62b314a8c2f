package remote

import (
	"context"
	"fmt"
	"math"
	"time"
)

// RetryPolicy describes how a remote operation is retried after a transient
// failure. It is passed into the backends as a value so the policy can be
// tested on its own instead of living in ad hoc retry loops.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultPolicy returns the policy used against the public archive:
// maxAttempts tries with exponential backoff starting at 200ms.
func DefaultPolicy(maxAttempts int) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   200 * time.Millisecond,
		Multiplier:  2,
	}
}

// Backoff returns the delay before the given zero-based retry attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return p.BaseDelay
	}
	return time.Duration(float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt)))
}

// Do runs fn up to MaxAttempts times, sleeping Backoff between attempts.
// Context cancellation stops retrying immediately and is returned as-is,
// never wrapped as a transient failure.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(p.Backoff(i - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := fn(ctx); err == nil {
			return nil
		} else if ctx.Err() != nil {
			return ctx.Err()
		} else {
			lastErr = err
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", attempts, lastErr)
}
