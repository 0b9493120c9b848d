package saga

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_Execute_SucceedsFirstTry(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3}

	calls := 0
	err := policy.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_Execute_RetriesUntilSuccess(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond}

	calls := 0
	err := policy.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicy_Execute_ExhaustsAttempts(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}

	sentinel := errors.New("permanent")
	calls := 0
	err := policy.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return sentinel
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), "exhausted 3 attempt(s)")
}

func TestRetryPolicy_Execute_ZeroAttemptsRunsOnce(t *testing.T) {
	policy := RetryPolicy{}

	calls := 0
	err := policy.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_Execute_StopsWhenContextCancelled(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 10, BaseDelay: 50 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := policy.Execute(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	})

	require.Error(t, err)
	// Cancelled during the first backoff wait: no further attempts.
	assert.Equal(t, 1, calls)
	assert.Contains(t, err.Error(), "aborted")
}

func TestRetryPolicy_Delay_ExponentialWithCap(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts: 10,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    1 * time.Second,
	}

	assert.Equal(t, 100*time.Millisecond, policy.Delay(1))
	assert.Equal(t, 200*time.Millisecond, policy.Delay(2))
	assert.Equal(t, 400*time.Millisecond, policy.Delay(3))
	assert.Equal(t, 800*time.Millisecond, policy.Delay(4))
	assert.Equal(t, 1*time.Second, policy.Delay(5))
	assert.Equal(t, 1*time.Second, policy.Delay(9))
}

func TestRetryPolicy_Delay_NoBaseDelay(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3}
	assert.Equal(t, time.Duration(0), policy.Delay(1))
	assert.Equal(t, time.Duration(0), policy.Delay(5))
}

func TestRetryPolicy_AttemptTimeout(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:    2,
		AttemptTimeout: 10 * time.Millisecond,
	}

	calls := 0
	err := policy.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
}
