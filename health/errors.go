package health

import "errors"

var (
	// ErrCheckTimeout is returned when a health check exceeds its deadline.
	ErrCheckTimeout = errors.New("health: check timed out")

	// ErrCheckerNotFound is returned when a named checker is not registered.
	ErrCheckerNotFound = errors.New("health: checker not found")

	// ErrNoCheckers is returned when an aggregator has no registered checkers.
	ErrNoCheckers = errors.New("health: no checkers registered")
)
