package syncbus

import (
	"context"
	"time"
)

// RetryPolicy is the single source of truth for retry limits and backoff,
// shared by the bus and by the change-notification dispatcher. Attempt
// numbering starts at zero for the first retry.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     []time.Duration
}

// DefaultRetryPolicy matches the default sync configuration: three retries
// with a short doubling schedule.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, 2 * time.Second},
	}
}

// Delay returns the pause before the given retry attempt. Attempts beyond the
// schedule reuse its last entry.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if len(p.Backoff) == 0 {
		return 0
	}
	if attempt >= len(p.Backoff) {
		return p.Backoff[len(p.Backoff)-1]
	}
	if attempt < 0 {
		return p.Backoff[0]
	}
	return p.Backoff[attempt]
}

// Exhausted reports whether a retry count has consumed the policy.
func (p RetryPolicy) Exhausted(retryCount int) bool {
	return retryCount >= p.MaxAttempts
}

// Do runs fn, retrying per the policy with context-aware backoff pauses. The
// last error is returned once the policy is exhausted.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err == nil {
		return nil
	}
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay(attempt)):
		}
		if err = fn(ctx); err == nil {
			return nil
		}
	}
	return err
}
