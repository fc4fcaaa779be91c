package ouicomply

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// RetryConfig controls the exponential backoff applied to remote calls.
// Constructed once per client and copied by value wherever needed.
type RetryConfig struct {
	MaxAttempts   int           // total attempts, ≥ 1
	BaseDelay     time.Duration // delay before the second attempt
	MaxDelay      time.Duration // backoff ceiling
	BackoffFactor float64       // > 1
	Jitter        float64       // ± fraction of the delay, 0 disables
}

// DefaultRetryConfig matches the tuning used by the server entry points.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		BaseDelay:     500 * time.Millisecond,
		MaxDelay:      8 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        0.2,
	}
}

// RetryExhaustedError wraps the last failure once every attempt is spent.
type RetryExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }

// nextDelay returns the backoff before attempt+1, attempt counted from 1.
// Jitter is applied by Retry, not here, so the schedule stays testable.
func nextDelay(cfg RetryConfig, attempt int) time.Duration {
	factor := cfg.BackoffFactor
	if factor <= 1 {
		factor = 2.0
	}
	d := time.Duration(float64(cfg.BaseDelay) * math.Pow(factor, float64(attempt-1)))
	if cfg.MaxDelay > 0 && d > cfg.MaxDelay {
		d = cfg.MaxDelay
	}
	return d
}

// Retry executes op until it succeeds or cfg.MaxAttempts is reached.
// Every failure is treated as retryable: the remote dependency's transient
// and permanent failure modes are not distinguishable from the client
// alone. The caller-supplied context is honored between attempts, so a
// deadline or cancellation aborts the loop instead of sleeping past it.
func Retry[T any](ctx context.Context, cfg RetryConfig, log *slog.Logger, op func() (T, error)) (T, error) {
	log = orDefault(log)
	var zero T

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := op()
		if err == nil {
			if attempt > 1 {
				log.Debug("attempt succeeded", "attempt", attempt)
			}
			return v, nil
		}
		lastErr = err

		switch {
		case attempt == attempts:
			log.Error("final attempt failed", "attempt", attempt, "max_attempts", attempts, "error", err)
		case attempt == attempts-1:
			log.Warn("attempt failed, one retry left", "attempt", attempt, "error", err)
		default:
			log.Debug("attempt failed, retrying", "attempt", attempt, "error", err)
		}

		if attempt == attempts {
			break
		}

		delay := nextDelay(cfg, attempt)
		if cfg.Jitter > 0 {
			spread := cfg.Jitter * float64(delay)
			delay += time.Duration((rand.Float64()*2 - 1) * spread)
			if delay < 0 {
				delay = 0
			}
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, &RetryExhaustedError{Attempts: attempts, Last: lastErr}
}
