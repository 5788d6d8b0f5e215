// Package retry executes operations with exponential backoff for transient
// failures. Classification is a match over domain error kinds, never a scan
// of error text.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/ParkerRex/zeke-sub005/internal/domain"
)

type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the exponential growth.
	MaxBackoff time.Duration
	// Jitter multiplies each delay by a uniform factor in [0.5, 1.5) so
	// concurrent source runs do not retry in lockstep.
	Jitter bool
	// IsRetryable overrides domain.IsRetryable when set.
	IsRetryable func(error) bool
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Jitter:         true,
	}
}

// Do runs fn until it succeeds, the error is classified non-retryable, or
// attempts are exhausted. The backoff wait selects on ctx, so cancellation
// interrupts it. The last error is returned after exhaustion.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 1 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	isRetryable := cfg.IsRetryable
	if isRetryable == nil {
		isRetryable = domain.IsRetryable
	}

	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !isRetryable(lastErr) {
			return lastErr
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoffFor(cfg, attempt)):
		}
	}

	return fmt.Errorf("after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// backoffFor returns the delay after the given 1-indexed attempt:
// initial * 2^(attempt-1), capped at MaxBackoff, optionally jittered.
func backoffFor(cfg Config, attempt int) time.Duration {
	backoff := cfg.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
			break
		}
	}

	if cfg.Jitter {
		factor := 0.5 + rand.Float64()
		backoff = time.Duration(float64(backoff) * factor)
	}

	return backoff
}
