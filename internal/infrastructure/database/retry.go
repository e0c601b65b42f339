package database

import (
	"context"
	"time"
)

const (
	// retryAttempts is how many times a write is tried before giving up.
	retryAttempts = 3

	// retryBaseDelay is the delay before the first retry; it doubles on
	// each subsequent attempt (1s, 2s).
	retryBaseDelay = time.Second
)

// sleepFunc lets tests replace the inter-attempt wait.
type sleepFunc func(ctx context.Context, d time.Duration) error

// sleepCtx waits for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WithRetry runs op up to three times with exponential backoff between
// attempts. It returns nil on the first success, ctx.Err() if the context
// expires while waiting, and the last attempt's error otherwise.
//
// Intended for transient database failures (server restart, brief network
// drop); callers pass operations that are safe to repeat.
func WithRetry(ctx context.Context, op func(ctx context.Context) error) error {
	return withRetry(ctx, op, sleepCtx)
}

func withRetry(ctx context.Context, op func(ctx context.Context) error, sleep sleepFunc) error {
	var err error
	delay := retryBaseDelay

	for attempt := 1; attempt <= retryAttempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if attempt == retryAttempts {
			break
		}
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
		delay *= 2
	}

	return err
}
