// Package breaker implements a circuit breaker as a finite-state machine.
//
// The transition functions Allow, OnSuccess and OnFailure are pure: they
// take the current State and return the next one. Breaker wraps them with
// a mutex and a clock for use by concurrent callers.
package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/solracnyc/gasrag"
)

// Phase is the position of the breaker in its state machine.
type Phase int

// Phase constants.
const (
	Closed Phase = iota
	Open
	HalfOpen
)

func (p Phase) String() string {
	switch p {
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Config holds the breaker thresholds.
type Config struct {
	// Threshold is the failure count at which a closed breaker opens.
	Threshold int

	// Timeout is how long an open breaker waits after the last failure
	// before letting a trial call through.
	Timeout time.Duration
}

// DefaultConfig opens after 5 failures and retries after 60 seconds.
func DefaultConfig() Config {
	return Config{Threshold: 5, Timeout: 60 * time.Second}
}

// State is the breaker's full state.
type State struct {
	Phase        Phase
	FailureCount int
	LastFailure  time.Time

	// TrialInFlight is set while the single half-open trial call runs.
	TrialInFlight bool
}

// Allow decides whether a call may proceed at time now. An open breaker
// whose timeout has elapsed moves to half-open and admits one trial call.
func Allow(s State, now time.Time, cfg Config) (State, bool) {
	switch s.Phase {
	case Open:
		if now.Sub(s.LastFailure) < cfg.Timeout {
			return s, false
		}
		s.Phase = HalfOpen
		s.TrialInFlight = true
		return s, true
	case HalfOpen:
		if s.TrialInFlight {
			return s, false
		}
		s.TrialInFlight = true
		return s, true
	default:
		return s, true
	}
}

// OnSuccess records a successful call. Any success closes the breaker.
func OnSuccess(s State) State {
	return State{Phase: Closed, LastFailure: s.LastFailure}
}

// OnFailure records a failed call at time now. A half-open breaker reopens
// on any failure; a closed one opens once the failure count reaches the
// threshold.
func OnFailure(s State, now time.Time, cfg Config) State {
	s.FailureCount++
	s.LastFailure = now
	s.TrialInFlight = false
	switch s.Phase {
	case HalfOpen:
		s.Phase = Open
	case Closed:
		if s.FailureCount >= cfg.Threshold {
			s.Phase = Open
		}
	}
	return s
}

// Breaker is a concurrency-safe circuit breaker.
type Breaker struct {
	mu    sync.Mutex
	cfg   Config
	state State

	// Now returns the current time. Tests replace it to control the clock.
	Now func() time.Time
}

// New returns a closed Breaker.
func New(cfg Config) *Breaker {
	if cfg.Threshold < 1 {
		cfg.Threshold = 1
	}
	return &Breaker{cfg: cfg, Now: time.Now}
}

// Allow returns EUNAVAILABLE if calls are currently rejected.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	next, ok := Allow(b.state, b.Now(), b.cfg)
	b.state = next
	if !ok {
		return gasrag.Errorf(gasrag.EUNAVAILABLE, "circuit breaker is %s: service unavailable", next.Phase)
	}
	return nil
}

// Success records a successful call.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = OnSuccess(b.state)
}

// Failure records a failed call.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = OnFailure(b.state, b.Now(), b.cfg)
}

// State returns a copy of the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset returns the breaker to closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = State{}
}

// Execute runs fn if the breaker allows it and records the outcome.
// Context cancellation by the caller is not counted as a failure.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	err := fn(ctx)
	switch {
	case err == nil:
		b.Success()
	case ctx.Err() == context.Canceled:
		b.release()
	default:
		b.Failure()
	}
	return err
}

// release clears a half-open trial without judging the outcome.
func (b *Breaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.TrialInFlight = false
}
