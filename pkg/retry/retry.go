package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Policy controls exponential backoff between attempts.
// Retryable decides which errors are worth another attempt; returning false
// stops immediately and surfaces the error as-is.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Retryable   func(error) bool
}

func (p Policy) withDefaults() Policy {
	out := p
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 3
	}
	if out.BaseDelay <= 0 {
		out.BaseDelay = 100 * time.Millisecond
	}
	if out.MaxDelay <= 0 {
		out.MaxDelay = 2 * time.Second
	}
	if out.Retryable == nil {
		out.Retryable = func(error) bool { return true }
	}
	return out
}

// Do runs fn until it succeeds, a non-retryable error occurs, attempts are
// exhausted, or ctx is done. The last error is returned on failure.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	p = p.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}

		delay := backoff(p.BaseDelay, p.MaxDelay, attempt)
		select {
		case <-ctx.Done():
			return errors.Join(ctx.Err(), lastErr)
		case <-time.After(delay):
		}
	}
	return lastErr
}

// backoff returns base*2^(attempt-1) capped at max, with jitter up to 25%.
func backoff(base, max time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			d = max
			break
		}
	}
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
	d += jitter
	if d > max {
		d = max
	}
	return d
}
