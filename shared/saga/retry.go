package saga

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// RetryPolicy wraps a single forward action with bounded retries and
// exponential backoff before the orchestrator treats the step as a hard
// failure. Compensations are not wrapped: they run once and rely on the
// step author's idempotency contract.
type RetryPolicy struct {
	// MaxAttempts bounds the total number of invocations, first try included.
	MaxAttempts int

	// BaseDelay is the delay before the second attempt; each further
	// attempt doubles it (BaseDelay * 2^(attempt-1)).
	BaseDelay time.Duration

	// MaxDelay caps the backoff delay. Zero means no cap.
	MaxDelay time.Duration

	// AttemptTimeout bounds each individual attempt. Zero means the
	// attempt runs under the caller's context only.
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy returns the policy used when an orchestrator is built
// without an explicit one
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

// Execute runs op until it succeeds, attempts are exhausted, or the caller's
// context is done. Backoff waits are cancellation-aware.
func (p RetryPolicy) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return errors.Wrapf(lastErr, "aborted after %d attempt(s): %v", attempt-1, err)
			}
			return err
		}

		lastErr = p.runAttempt(ctx, op)
		if lastErr == nil {
			return nil
		}

		if attempt == maxAttempts {
			break
		}

		if err := p.wait(ctx, p.Delay(attempt)); err != nil {
			return errors.Wrapf(lastErr, "aborted during backoff: %v", err)
		}
	}

	return errors.Wrapf(lastErr, "exhausted %d attempt(s)", maxAttempts)
}

func (p RetryPolicy) runAttempt(ctx context.Context, op func(ctx context.Context) error) error {
	if p.AttemptTimeout <= 0 {
		return op(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()
	return op(attemptCtx)
}

// Delay returns the backoff delay applied after the given attempt (1-based)
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}

	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

func (p RetryPolicy) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
