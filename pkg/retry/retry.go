// Package retry provides retry logic with exponential backoff for transient
// failures.
//
// The package wraps github.com/cenkalti/backoff/v5 and ties it to the error
// classification model: by default a domain error is treated as permanent
// while generic errors are retried with exponential backoff and jitter.
//
// Example usage:
//
//	cfg := retry.Config{
//		MaxAttempts:  5,
//		InitialDelay: 100 * time.Millisecond,
//		MaxDelay:     5 * time.Second,
//	}
//
//	err := retry.Do(ctx, cfg, func() error {
//		return someOperation()
//	})
package retry

import (
	"context"

	"github.com/cenkalti/backoff/v5"
)

// Do executes the provided function with retry logic based on the
// configuration. It respects context cancellation and applies exponential
// backoff between retries.
//
// Returns the error from the last attempt if all retries are exhausted.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	_, err := DoWithData(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithData executes the provided function with retry logic and returns a
// value. It works the same as Do but supports functions that return both a
// value and an error.
func DoWithData[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialDelay
	b.MaxInterval = cfg.MaxDelay
	b.Multiplier = cfg.Multiplier
	b.RandomizationFactor = cfg.Jitter

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
	}
	if cfg.MaxAttempts > 0 {
		opts = append(opts, backoff.WithMaxTries(cfg.MaxAttempts))
	}
	if cfg.MaxElapsedTime > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(cfg.MaxElapsedTime))
	}

	operation := func() (T, error) {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		if !cfg.shouldRetry(err) {
			var zero T
			return zero, backoff.Permanent(err)
		}
		return result, err
	}

	return backoff.Retry(ctx, operation, opts...)
}
