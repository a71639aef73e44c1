// Package resilience provides fault-tolerance primitives shared by the
// registry (per-worker circuit breaking) and the orchestrator
// (assignment retry/backoff).
package resilience

import (
	"sync"
	"time"
)

// State is one of the three circuit breaker states (§4.7).
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config tunes the breaker's thresholds. DefaultConfig matches §4.7
// exactly: 3 consecutive failures open the circuit, it stays open for
// 5 minutes, a single success in half-open closes it, and 3
// consecutive non-reset successes while closed heal one failure each.
type Config struct {
	MaxFailures     int
	OpenTimeout     time.Duration
	HealEvery       int
	OnStateChange   func(from, to State)
}

func DefaultConfig() Config {
	return Config{
		MaxFailures: 3,
		OpenTimeout: 5 * time.Minute,
		HealEvery:   3,
	}
}

// CircuitBreaker is a per-worker three-state gate. Recovery from Open
// to HalfOpen is computed lazily in IsAvailable, avoiding a background
// timer per node (§9).
type CircuitBreaker struct {
	mu                sync.Mutex
	cfg               Config
	state             State
	consecutiveFails  int
	consecutiveHeals  int
	lastFailure       time.Time
	halfOpenProbeSent bool
}

func New(cfg Config) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 5 * time.Minute
	}
	if cfg.HealEvery <= 0 {
		cfg.HealEvery = 3
	}
	return &CircuitBreaker{cfg: cfg, state: StateClosed}
}

// IsAvailable reports whether the breaker currently permits selection.
// Only Open blocks selection (§4.6); this may return a stale snapshot
// per the concurrency model (§5), which is acceptable.
func (cb *CircuitBreaker) IsAvailable() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeTransitionToHalfOpen()
	return cb.state != StateOpen
}

// State returns the current state, lazily recomputing Open->HalfOpen.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeTransitionToHalfOpen()
	return cb.state
}

// maybeTransitionToHalfOpen must be called with cb.mu held.
func (cb *CircuitBreaker) maybeTransitionToHalfOpen() {
	if cb.state == StateOpen && time.Since(cb.lastFailure) > cb.cfg.OpenTimeout {
		cb.setState(StateHalfOpen)
		cb.halfOpenProbeSent = false
	}
}

// RecordFailure records a send failure, retry exhaustion, or
// TASK_ERROR for the worker this breaker guards.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeTransitionToHalfOpen()

	cb.consecutiveHeals = 0
	cb.lastFailure = time.Now()

	switch cb.state {
	case StateHalfOpen:
		cb.setState(StateOpen)
	case StateClosed:
		cb.consecutiveFails++
		if cb.consecutiveFails >= cb.cfg.MaxFailures {
			cb.setState(StateOpen)
		}
	}
}

// RecordSuccess records a TASK_RESULT for the worker this breaker
// guards. A single success while HalfOpen closes the circuit and
// resets the failure count; repeated successes while Closed gradually
// heal the failure count (§4.7).
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeTransitionToHalfOpen()

	switch cb.state {
	case StateHalfOpen:
		cb.setState(StateClosed)
		cb.consecutiveFails = 0
		cb.consecutiveHeals = 0
	case StateClosed:
		cb.consecutiveHeals++
		if cb.consecutiveHeals >= cb.cfg.HealEvery {
			cb.consecutiveHeals = 0
			if cb.consecutiveFails > 0 {
				cb.consecutiveFails--
			}
		}
	}
}

// FailureCount returns the current consecutive-failure count, mostly
// for tests and diagnostics.
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.consecutiveFails
}

// setState must be called with cb.mu held.
func (cb *CircuitBreaker) setState(newState State) {
	if cb.state == newState {
		return
	}
	old := cb.state
	cb.state = newState
	if cb.cfg.OnStateChange != nil {
		go cb.cfg.OnStateChange(old, newState)
	}
}
