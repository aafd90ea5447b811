package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// BackoffFunc returns the delay to wait after the given (1-based) failed attempt.
type BackoffFunc func(attempt int) time.Duration

// Config holds retry configuration
type Config struct {
	Enabled            bool        // Enable/disable retry logic
	MaxAttempts        int         // Total number of attempts, first try included
	Backoff            BackoffFunc // Delay before the next attempt (nil = no delay)
	RetryableErrors    []error     // Errors that should trigger retry (nil = all errors)
	NonRetryableErrors []error     // Errors that should NOT trigger retry

	// OnRetry is called before waiting for the next attempt.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultConfig returns a default retry configuration
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		MaxAttempts: 3,
		Backoff:     Exponential(100*time.Millisecond, 5*time.Second, 2.0),
	}
}

// Linear grows the delay by step for every failed attempt: step, 2*step, 3*step...
func Linear(step time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return step * time.Duration(attempt)
	}
}

// Exponential computes initial * multiplier^(attempt-1), capped at max.
func Exponential(initial, max time.Duration, multiplier float64) BackoffFunc {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		delay := float64(initial) * math.Pow(multiplier, float64(attempt-1))
		if max > 0 && delay > float64(max) {
			delay = float64(max)
		}
		return time.Duration(delay)
	}
}

// Constant always waits d.
func Constant(d time.Duration) BackoffFunc {
	return func(int) time.Duration { return d }
}

// Retry executes fn until it succeeds, the attempts run out or ctx is done.
func Retry(ctx context.Context, cfg Config, fn func(attempt int) error) error {
	_, err := RetryWithResult(ctx, cfg, func(attempt int) (struct{}, error) {
		return struct{}{}, fn(attempt)
	})
	return err
}

// RetryWithResult executes a function that returns a result with the configured backoff.
// Attempts are numbered from 1.
func RetryWithResult[T any](ctx context.Context, cfg Config, fn func(attempt int) (T, error)) (T, error) {
	var zero T

	if !cfg.Enabled || cfg.MaxAttempts <= 1 {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("retry cancelled: %w", err)
		}
		return fn(1)
	}

	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		default:
		}

		result, err := fn(attempt)
		if err == nil {
			return result, nil
		}

		lastErr = err

		if matches(err, cfg.NonRetryableErrors) {
			return zero, fmt.Errorf("non-retryable error: %w", err)
		}
		if len(cfg.RetryableErrors) > 0 && !matches(err, cfg.RetryableErrors) {
			return zero, fmt.Errorf("error not in retryable list: %w", err)
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		var delay time.Duration
		if cfg.Backoff != nil {
			delay = cfg.Backoff(attempt)
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, delay, err)
		}
		if delay <= 0 {
			continue
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("retry cancelled during wait: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return zero, fmt.Errorf("max attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
}

func matches(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
