package retry

import (
	"context"
	"fmt"
	"time"
)

// DelayFunc returns the delay to wait before the given retry attempt
// (1-based; attempt 0 never waits).
type DelayFunc func(attempt int) time.Duration

// Fixed waits the same duration between every attempt.
func Fixed(d time.Duration) DelayFunc {
	return func(int) time.Duration { return d }
}

// Exponential doubles the base delay on each attempt.
func Exponential(base time.Duration) DelayFunc {
	return func(attempt int) time.Duration {
		d := base
		for i := 1; i < attempt; i++ {
			d *= 2
		}
		return d
	}
}

// Do runs fn up to attempts times, waiting delay(attempt) between tries.
// It stops early when fn succeeds or the context is done.
func Do(ctx context.Context, attempts int, delay DelayFunc, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay(attempt)):
			}
		}

		if err := fn(ctx); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	return fmt.Errorf("max attempts exceeded: %w", lastErr)
}
