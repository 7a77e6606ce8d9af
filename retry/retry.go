// Package retry runs remote calls under a retry policy with configurable
// backoff and retryability classification. The same abstraction backs the
// embedding pipeline, the vector store client and the migration batches.
package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/solracnyc/gasrag"
)

// Policy configures Do.
type Policy struct {
	// MaxAttempts is the total number of calls, including the first.
	MaxAttempts int

	// BaseDelay and MaxDelay bound the default exponential backoff.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Jitter is the upper bound of a random duration added to each delay.
	Jitter time.Duration

	// Retryable classifies errors. Defaults to gasrag.IsRetryable.
	Retryable func(error) bool

	// Backoff returns the delay after the given failed attempt (1-based).
	// Defaults to exponential backoff from BaseDelay.
	Backoff func(attempt int, err error) time.Duration

	// Sleep waits between attempts. Defaults to a context-aware timer.
	// Tests replace it to record delays without waiting.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnRetry, if set, is called before each wait.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do calls fn until it succeeds, returns a non-retryable error, or the
// policy runs out of attempts. Non-retryable errors are returned as is;
// exhaustion is reported as *ExhaustedError wrapping the last error.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = gasrag.IsRetryable
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}

		delay := p.Delay(attempt, err)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	return &ExhaustedError{Attempts: maxAttempts, Err: lastErr}
}

// DoValue is Do for functions that return a value.
func DoValue[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, p, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

// Delay returns the wait after the given failed attempt, including jitter.
func (p Policy) Delay(attempt int, err error) time.Duration {
	var d time.Duration
	if p.Backoff != nil {
		d = p.Backoff(attempt, err)
	} else {
		d = Exponential(p.BaseDelay, p.MaxDelay)(attempt, err)
	}
	if p.Jitter > 0 {
		d += rand.N(p.Jitter)
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Exponential returns a backoff of base doubling per attempt: base,
// 2×base, 4×base... capped at max when max is positive.
func Exponential(base, max time.Duration) func(int, error) time.Duration {
	return func(attempt int, _ error) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		d := base
		for i := 1; i < attempt; i++ {
			d *= 2
			if max > 0 && d >= max {
				return max
			}
		}
		if max > 0 && d > max {
			return max
		}
		return d
	}
}

// Linear returns a backoff of base × attempt.
func Linear(base time.Duration) func(int, error) time.Duration {
	return func(attempt int, _ error) time.Duration {
		return base * time.Duration(attempt)
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
