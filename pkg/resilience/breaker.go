// Package resilience implements the per-source circuit breaker and rate
// limiter of §4.3, grounded on the teacher's MCP recovery-classification
// style (pkg/mcp/recovery.go: small state machine, sentinel constants,
// package-level thresholds) adapted from "classify a single error" to
// "track failures across many calls and gate execution."
package resilience

import (
	"sync"
	"time"
)

// State is a circuit breaker's current gate position.
type State string

const (
	StateClosed State = "closed"
	StateOpen   State = "open"
)

// Breaker is a per-source fail-threshold -> open -> recovery breaker
// (§4.3). The zero value is not usable; construct with NewBreaker.
//
// Contract: CanExecute is the only gate. A caller that proceeds after a
// true CanExecute must call exactly one of RecordSuccess/RecordFailure.
type Breaker struct {
	mu               sync.Mutex
	state            State
	failureThreshold int
	recoveryTimeout  time.Duration
	consecutiveFails int
	openedAt         time.Time
}

// NewBreaker creates a closed breaker with the given thresholds.
func NewBreaker(failureThreshold int, recoveryTimeout time.Duration) *Breaker {
	return &Breaker{
		state:            StateClosed,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
	}
}

// CanExecute reports whether a call may proceed right now. An open breaker
// transitions to closed (clearing its failure count) the first time
// CanExecute is called after recoveryTimeout has elapsed since it opened
// (§4.3).
func (b *Breaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateClosed {
		return true
	}

	// state == StateOpen
	if time.Since(b.openedAt) >= b.recoveryTimeout {
		b.state = StateClosed
		b.consecutiveFails = 0
		return true
	}
	return false
}

// RecordSuccess resets the failure count. A success recorded while closed
// simply clears the counter (§4.3); a success is only meaningful after a
// true CanExecute, so this never needs to close an already-open breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFails = 0
}

// RecordFailure increments the consecutive-failure count and opens the
// breaker once the threshold is reached.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFails++
	if b.state == StateClosed && b.consecutiveFails >= b.failureThreshold {
		b.state = StateOpen
		b.openedAt = time.Now()
	}
}

// Snapshot returns the breaker's current state for health reporting/tests.
func (b *Breaker) Snapshot() (state State, consecutiveFails int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state, b.consecutiveFails
}
