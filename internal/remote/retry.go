package remote

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Policy bounds the retry behaviour for transient provider failures. The
// zero value is unusable; construct with [DefaultPolicy] or set all fields.
// Injecting the policy keeps backoff timing out of the adapters and makes it
// controllable in tests.
type Policy struct {
	// MaxAttempts is the number of tries before Do gives up.
	MaxAttempts int

	// BaseDelay is the starting backoff interval (before jitter).
	BaseDelay time.Duration

	// MaxDelay caps the backoff interval.
	MaxDelay time.Duration
}

// DefaultPolicy returns the production retry policy: 3 attempts, 500ms base
// delay, 5s cap.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

// Do executes fn up to MaxAttempts times with exponential backoff and
// jitter. Only transient failures are retried: auth and validation errors
// return immediately. On exhaustion the last transient error is returned
// wrapped with the attempt count.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := range p.MaxAttempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}

		if attempt < p.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(p.backoffDelay(attempt)):
			}
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", p.MaxAttempts, lastErr)
}

// backoffDelay computes the delay for a given attempt index, applying
// exponential growth with 50–100 % jitter.
func (p Policy) backoffDelay(attempt int) time.Duration {
	delay := p.BaseDelay * (1 << attempt)
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	// Jitter: uniform in [delay/2, delay).
	jitter := time.Duration(rand.Int63n(int64(delay) / 2)) //nolint:gosec // jitter does not need crypto/rand
	return delay/2 + jitter
}
