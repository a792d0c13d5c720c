package circuitbreaker

import (
	"sync"
	"time"
)

// CircuitBreaker counts failures of a single relay and trips once too many of them
// happen within a window. A tripped breaker closes again after the reset timeout.
type CircuitBreaker struct {
	enabled       bool
	failureCount  int
	failureWindow time.Duration
	failThreshold int
	resetTimeout  time.Duration
	lastFailure   time.Time
	tripped       bool
	tripTime      time.Time
	now           func() time.Time
	mu            sync.Mutex
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(enabled bool, threshold int, window time.Duration, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		enabled:       enabled,
		failThreshold: threshold,
		failureWindow: window,
		resetTimeout:  resetTimeout,
		now:           time.Now,
	}
}

// WithClock replaces the time source, used by callers that replay recorded failures
func (cb *CircuitBreaker) WithClock(now func() time.Time) *CircuitBreaker {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.now = now
	return cb
}

// RecordFailureAt records a failure observed at the given time and trips the circuit
// if the threshold is reached within the failure window
func (cb *CircuitBreaker) RecordFailureAt(at time.Time) bool {
	if !cb.enabled {
		return false
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	// If the circuit is already tripped, check if it's time to try again
	if cb.tripped {
		if at.Sub(cb.tripTime) > cb.resetTimeout {
			cb.tripped = false
			cb.failureCount = 0
		} else {
			cb.lastFailure = at
			return true
		}
	}

	// Reset failure count if outside window
	if at.Sub(cb.lastFailure) > cb.failureWindow {
		cb.failureCount = 0
	}

	cb.failureCount++
	if at.After(cb.lastFailure) {
		cb.lastFailure = at
	}

	if cb.failureCount >= cb.failThreshold {
		cb.tripped = true
		cb.tripTime = at
		return true
	}

	return false
}

// IsOpen returns true if the circuit is open (tripped)
func (cb *CircuitBreaker) IsOpen() bool {
	if !cb.enabled {
		return false
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	// If tripped but reset timeout has passed, try again
	if cb.tripped && cb.now().Sub(cb.tripTime) > cb.resetTimeout {
		cb.tripped = false
		cb.failureCount = 0
		return false
	}

	return cb.tripped
}

// RecentFailures returns the number of failures counted in the current window
func (cb *CircuitBreaker) RecentFailures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.now().Sub(cb.lastFailure) > cb.failureWindow {
		return 0
	}
	return cb.failureCount
}

// Reset manually resets the circuit breaker and forgets the last failure
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.tripped = false
	cb.failureCount = 0
	cb.lastFailure = time.Time{}
	cb.tripTime = time.Time{}
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() (failureCount int, lastFailure time.Time, failureWindow time.Duration, failThreshold int) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureCount, cb.lastFailure, cb.failureWindow, cb.failThreshold
}
