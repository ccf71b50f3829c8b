package token

import "errors"

// Sentinel errors for token management.
var (
	// ErrNoProvider indicates the manager has no credential provider.
	ErrNoProvider = errors.New("token: credential provider is required")

	// ErrNoCache indicates the manager has no cache.
	ErrNoCache = errors.New("token: cache is required")
)
