package services

import (
	"context"
	"fmt"
	"time"

	"vietnam-stock-trader/observability"
)

// RetryConfig tunes WithRetry. Backoff doubles per attempt up to MaxBackoff.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

var DefaultRetryConfig = RetryConfig{
	MaxRetries:     3,
	InitialBackoff: 100 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
}

// WithRetry runs fn up to MaxRetries+1 times, sleeping between attempts.
// Cancellation wins over the backoff sleep, and the returned error wraps
// the last failure so callers can still classify it.
func WithRetry(ctx context.Context, config RetryConfig, fn func() error) error {
	var lastErr error
	delay := config.InitialBackoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
			if delay > config.MaxBackoff {
				delay = config.MaxBackoff
			}
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if attempt < config.MaxRetries {
			observability.Warn("retrying after failure",
				"attempt", attempt+1,
				"max_retries", config.MaxRetries,
				"error", lastErr)
		}
	}

	return fmt.Errorf("failed after %d retries: %w", config.MaxRetries, lastErr)
}
