package generation

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"
)

// RetryPolicy is a linear backoff policy: the delay before attempt n
// (n >= 1) is BaseDelay*n, optionally stretched by up to Jitter*delay.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	// Jitter is a fraction in [0, 1]. Zero gives fixed delays.
	Jitter float64
}

// DefaultRetryPolicy allows two retries after 1s and 2s, without jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, BaseDelay: time.Second}
}

// Delay returns the wait before the given attempt number.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := p.BaseDelay * time.Duration(attempt)
	if p.Jitter > 0 && d > 0 {
		d += time.Duration(rand.Float64() * p.Jitter * float64(d))
	}
	return d
}

// Do runs fn until it succeeds, fails with a non-retryable error, the
// retry budget is spent, or ctx is done. It returns the number of attempts
// made and the last error.
func (p RetryPolicy) Do(ctx context.Context, logger *slog.Logger, op string, fn func(ctx context.Context, attempt int) error) (int, error) {
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := p.Delay(attempt)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return attempts, ctx.Err()
			case <-timer.C:
			}
		}

		attempts++
		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return attempts, nil
		}

		if !IsRetryable(lastErr) {
			logger.Warn("generation failed with terminal error",
				"operation", op,
				"attempt", attempts,
				"kind", Classify(lastErr),
				"error", lastErr)
			return attempts, lastErr
		}

		level := slog.LevelWarn
		if Classify(lastErr) == KindRateLimit {
			level = slog.LevelInfo
		}
		logger.Log(ctx, level, "generation attempt failed",
			"operation", op,
			"attempt", attempts,
			"max_attempts", p.MaxRetries+1,
			"kind", Classify(lastErr),
			"error", lastErr)
	}
	return attempts, lastErr
}
