package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/driftworks/apiward/apierr"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means calls flow through normally.
	StateClosed State = iota
	// StateOpen means calls are rejected without being attempted.
	StateOpen
	// StateHalfOpen means a limited number of probe calls are allowed.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of counted failures within
	// FailureWindow that opens the circuit.
	// Default: 5
	FailureThreshold int

	// FailureWindow bounds how far apart counted failures may be and
	// still accumulate toward the threshold.
	// Default: 30 seconds
	FailureWindow time.Duration

	// ResetTimeout is how long the circuit stays open before probing.
	// Default: 60 seconds
	ResetTimeout time.Duration

	// SuccessThreshold is the number of consecutive probe successes in
	// half-open state required to close the circuit.
	// Default: 3
	SuccessThreshold int

	// OnStateChange is called when the circuit state changes.
	OnStateChange func(from, to State)

	// IsFailure determines whether an error counts toward opening the
	// circuit. Default: classified retryable errors only, so terminal
	// caller mistakes (bad request, missing scope) never trip the
	// breaker for everyone else.
	IsFailure func(err error) bool

	// Now overrides the clock for tests.
	Now func() time.Time
}

// DefaultCircuitConfig returns the profile for ordinary API operations.
func DefaultCircuitConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		FailureWindow:    30 * time.Second,
		ResetTimeout:     60 * time.Second,
		SuccessThreshold: 3,
	}
}

// CriticalPathCircuitConfig returns a profile that trips fast for
// operations on a user-facing path.
func CriticalPathCircuitConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 3,
		FailureWindow:    10 * time.Second,
		ResetTimeout:     30 * time.Second,
		SuccessThreshold: 3,
	}
}

// BackgroundCircuitConfig returns a lenient profile for batch and sync
// workloads that can tolerate longer outages.
func BackgroundCircuitConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 20,
		FailureWindow:    120 * time.Second,
		ResetTimeout:     120 * time.Second,
		SuccessThreshold: 3,
	}
}

// CircuitBreaker implements the circuit breaker pattern around a single
// upstream dependency.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	firstFail   time.Time
	openedAt    time.Time
	transitions int64
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	// Apply defaults
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.FailureWindow <= 0 {
		config.FailureWindow = 30 * time.Second
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 60 * time.Second
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 3
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return apierr.IsRetryable(err) }
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
	}
}

// Allow reports whether a call may proceed. It returns ErrCircuitOpen
// when the circuit is open, and transitions open circuits to half-open
// once the reset timeout has elapsed.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.currentStateLocked() == StateOpen {
		return ErrCircuitOpen
	}
	return nil
}

// RecordSuccess reports a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentStateLocked() {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.setStateLocked(StateClosed)
		}
	}
}

// RecordFailure reports a failed call. Only errors that IsFailure
// accepts count toward opening the circuit.
func (cb *CircuitBreaker) RecordFailure(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.config.IsFailure(err) {
		return
	}

	now := cb.config.Now()

	switch cb.currentStateLocked() {
	case StateClosed:
		// Failures only accumulate inside the window; an old streak
		// restarts the count rather than tripping on stale history.
		if cb.failures == 0 || now.Sub(cb.firstFail) > cb.config.FailureWindow {
			cb.failures = 0
			cb.firstFail = now
		}
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.setStateLocked(StateOpen)
		}

	case StateHalfOpen:
		// A failed probe reopens immediately.
		cb.setStateLocked(StateOpen)
	}
}

// Execute runs the operation through the circuit breaker, recording the
// outcome. Callers that need to classify before recording should use
// Allow and Record* directly.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.Allow(); err != nil {
		return err
	}

	err := op(ctx)
	if err != nil {
		cb.RecordFailure(err)
	} else {
		cb.RecordSuccess()
	}
	return err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentStateLocked()
}

// Reset forces the circuit back to closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateClosed {
		cb.setStateLocked(StateClosed)
	} else {
		cb.failures = 0
		cb.successes = 0
	}
}

// currentStateLocked applies the lazy open -> half-open transition.
func (cb *CircuitBreaker) currentStateLocked() State {
	if cb.state == StateOpen && cb.config.Now().Sub(cb.openedAt) >= cb.config.ResetTimeout {
		cb.setStateLocked(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) setStateLocked(state State) {
	old := cb.state
	cb.state = state
	cb.transitions++

	switch state {
	case StateOpen:
		cb.openedAt = cb.config.Now()
		cb.successes = 0
	case StateHalfOpen:
		cb.successes = 0
	case StateClosed:
		cb.failures = 0
		cb.successes = 0
	}

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(old, state)
	}
}

// Metrics returns current circuit breaker statistics.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerMetrics{
		State:       cb.currentStateLocked(),
		Failures:    cb.failures,
		Successes:   cb.successes,
		Transitions: cb.transitions,
		OpenedAt:    cb.openedAt,
	}
}

// CircuitBreakerMetrics contains circuit breaker statistics.
type CircuitBreakerMetrics struct {
	State       State
	Failures    int
	Successes   int
	Transitions int64
	OpenedAt    time.Time
}
