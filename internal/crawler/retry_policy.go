package crawler

import (
	"context"
	"fmt"
	"math"
	"time"
)

// RetryPolicy retries an operation with exponential backoff. An operation is
// attempted at most Retries+1 times; before attempt n+1 it waits
// Delay*Backoff^n.
type RetryPolicy struct {
	Retries int
	Delay   time.Duration
	Backoff float64
}

// Wait returns the pause scheduled after the given zero-based attempt failed.
func (p RetryPolicy) Wait(attempt int) time.Duration {
	backoff := p.Backoff
	if backoff <= 0 {
		backoff = 1
	}
	return time.Duration(float64(p.Delay) * math.Pow(backoff, float64(attempt)))
}

// RetryFunc observes a scheduled retry before the policy sleeps.
type RetryFunc func(attempt int, wait time.Duration, err error)

// Retry runs op starting at attempt until it succeeds, fails with an error
// retryable rejects, or the attempt counter reaches Retries. It returns the
// last attempt index and the final error.
func (p RetryPolicy) Retry(
	ctx context.Context,
	clock Clock,
	attempt int,
	op func(ctx context.Context) error,
	retryable func(error) bool,
	onRetry RetryFunc,
) (int, error) {
	for {
		err := op(ctx)
		if err == nil {
			return attempt, nil
		}
		if attempt >= p.Retries || !retryable(err) {
			return attempt, err
		}
		wait := p.Wait(attempt)
		if onRetry != nil {
			onRetry(attempt, wait, err)
		}
		if sleepErr := clock.Sleep(ctx, wait); sleepErr != nil {
			return attempt, fmt.Errorf("retry wait: %w", sleepErr)
		}
		attempt++
	}
}
