package provider

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy caps retries of transient outbound failures.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
}

// DefaultRetryPolicy matches the service defaults.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, InitialDelay: 500 * time.Millisecond}

// Retry runs fn up to MaxAttempts times, sleeping an exponentially growing,
// jittered delay between attempts: initial * 2^attempt plus a uniform jitter
// in [0, 0.1*delay). Only retryable errors (see IsRetryable) are retried;
// anything else surfaces immediately.
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := policy.InitialDelay << (attempt - 1)
			delay += time.Duration(rand.Int63n(int64(delay)/10 + 1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
	}
	return err
}
