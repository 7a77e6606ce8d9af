package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/solracnyc/gasrag"
	"github.com/solracnyc/gasrag/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordSleep returns a Sleep func that records delays without waiting.
func recordSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestDo(t *testing.T) {
	t.Parallel()

	transient := &gasrag.StatusError{StatusCode: 503, Message: "unavailable"}

	t.Run("returns immediately on success", func(t *testing.T) {
		t.Parallel()

		calls := 0
		err := retry.Do(context.Background(), retry.Policy{MaxAttempts: 3}, func(context.Context) error {
			calls++
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries transient errors until success", func(t *testing.T) {
		t.Parallel()

		var delays []time.Duration
		calls := 0
		p := retry.Policy{MaxAttempts: 3, BaseDelay: time.Second, Sleep: recordSleep(&delays)}

		err := retry.Do(context.Background(), p, func(context.Context) error {
			calls++
			if calls < 3 {
				return transient
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
	})

	t.Run("fails fast on non-retryable error", func(t *testing.T) {
		t.Parallel()

		calls := 0
		fatal := gasrag.Errorf(gasrag.EUNAUTHORIZED, "invalid api key")

		err := retry.Do(context.Background(), retry.Policy{MaxAttempts: 5}, func(context.Context) error {
			calls++
			return fatal
		})

		assert.Same(t, fatal, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("reports exhaustion with attempts and cause", func(t *testing.T) {
		t.Parallel()

		var delays []time.Duration
		p := retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Sleep: recordSleep(&delays)}

		err := retry.Do(context.Background(), p, func(context.Context) error {
			return transient
		})

		var exhausted *retry.ExhaustedError
		require.ErrorAs(t, err, &exhausted)
		assert.Equal(t, 3, exhausted.Attempts)
		assert.ErrorIs(t, err, transient)
		assert.Len(t, delays, 2, "no wait after the final attempt")
	})

	t.Run("uses custom retryable predicate", func(t *testing.T) {
		t.Parallel()

		calls := 0
		p := retry.Policy{
			MaxAttempts: 4,
			Retryable:   func(error) bool { return true },
			Sleep:       func(context.Context, time.Duration) error { return nil },
		}

		_ = retry.Do(context.Background(), p, func(context.Context) error {
			calls++
			return errors.New("anything")
		})

		assert.Equal(t, 4, calls)
	})

	t.Run("calls OnRetry before each wait", func(t *testing.T) {
		t.Parallel()

		var attempts []int
		p := retry.Policy{
			MaxAttempts: 3,
			Sleep:       func(context.Context, time.Duration) error { return nil },
			OnRetry:     func(attempt int, _ error, _ time.Duration) { attempts = append(attempts, attempt) },
		}

		_ = retry.Do(context.Background(), p, func(context.Context) error { return transient })

		assert.Equal(t, []int{1, 2}, attempts)
	})

	t.Run("stops when context is canceled during wait", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		p := retry.Policy{MaxAttempts: 5, BaseDelay: time.Hour}

		err := retry.Do(ctx, p, func(context.Context) error {
			calls++
			cancel()
			return transient
		})

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestDoValue(t *testing.T) {
	t.Parallel()

	calls := 0
	p := retry.Policy{MaxAttempts: 2, Sleep: func(context.Context, time.Duration) error { return nil }}

	v, err := retry.DoValue(context.Background(), p, func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, context.DeadlineExceeded
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestPolicy_Delay(t *testing.T) {
	t.Parallel()

	t.Run("exponential doubles and caps", func(t *testing.T) {
		t.Parallel()

		p := retry.Policy{BaseDelay: time.Second, MaxDelay: 32 * time.Second}

		assert.Equal(t, time.Second, p.Delay(1, nil))
		assert.Equal(t, 2*time.Second, p.Delay(2, nil))
		assert.Equal(t, 16*time.Second, p.Delay(5, nil))
		assert.Equal(t, 32*time.Second, p.Delay(6, nil))
		assert.Equal(t, 32*time.Second, p.Delay(20, nil))
	})

	t.Run("linear grows by base", func(t *testing.T) {
		t.Parallel()

		p := retry.Policy{Backoff: retry.Linear(time.Second)}

		assert.Equal(t, time.Second, p.Delay(1, nil))
		assert.Equal(t, 3*time.Second, p.Delay(3, nil))
	})

	t.Run("jitter stays within bound", func(t *testing.T) {
		t.Parallel()

		p := retry.Policy{BaseDelay: 100 * time.Millisecond, Jitter: 50 * time.Millisecond}

		for range 50 {
			d := p.Delay(1, nil)
			assert.GreaterOrEqual(t, d, 100*time.Millisecond)
			assert.Less(t, d, 150*time.Millisecond)
		}
	})
}
