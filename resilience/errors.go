package resilience

import "errors"

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker rejects a call
	// without attempting it.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrRateLimited is returned when quota admission cannot be granted.
	ErrRateLimited = errors.New("resilience: rate limit exceeded")

	// ErrAcquireTimeout is returned when rate-limit admission could not be
	// granted within the configured wait.
	ErrAcquireTimeout = errors.New("resilience: admission wait timed out")

	// ErrTimeout is returned when a single attempt exceeds its time budget.
	ErrTimeout = errors.New("resilience: operation timed out")
)
