package chain

import (
	"context"
	"time"
)

const defaultRetryBackoff = 100 * time.Millisecond

// withRetry runs fn once plus up to retries more times, doubling the wait
// between attempts. retries <= 0 means a single attempt.
func withRetry(ctx context.Context, retries int, backoff time.Duration, fn func(context.Context) error) error {
	err := fn(ctx)
	if err == nil || retries <= 0 {
		return err
	}
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}

	timer := time.NewTimer(backoff)
	defer timer.Stop()

	for attempt := 1; attempt <= retries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		if err = fn(ctx); err == nil {
			return nil
		}

		backoff *= 2
		timer.Reset(backoff)
	}
	return err
}
