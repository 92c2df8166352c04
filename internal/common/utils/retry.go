package utils

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// RetryConfig controls RetryWithBackoff.
type RetryConfig struct {
	// MaxAttempts counts the initial attempt.
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// JitterFactor adds up to this fraction of the delay at random.
	JitterFactor float64
	// Retryable reports whether err is worth another attempt. Nil retries
	// every error.
	Retryable func(error) bool
}

// DefaultRetryConfig is three attempts starting at one second, doubling up
// to thirty seconds with 10% jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

// RetryWithBackoff calls fn until it succeeds, returns a non-retryable error,
// runs out of attempts or ctx is done.
func RetryWithBackoff(ctx context.Context, config RetryConfig, fn func() error) error {
	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if config.Retryable != nil && !config.Retryable(err) {
			return err
		}
		if attempt == config.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		delay = nextDelay(delay, config)
	}

	if lastErr == nil {
		return fmt.Errorf("no attempts made")
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func nextDelay(delay time.Duration, config RetryConfig) time.Duration {
	if config.BackoffFactor > 0 {
		delay = time.Duration(float64(delay) * config.BackoffFactor)
	}
	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	if config.JitterFactor > 0 {
		if jitter := int64(float64(delay) * config.JitterFactor); jitter > 0 {
			delay += time.Duration(rand.Int63n(jitter))
		}
	}
	return delay
}
