package secret

import "errors"

// Sentinel errors for secret resolution.
var (
	// ErrNotFound indicates the provider has no secret for the reference.
	ErrNotFound = errors.New("secret: not found")

	// ErrProviderNotRegistered indicates an unknown provider name in a reference.
	ErrProviderNotRegistered = errors.New("secret: provider not registered")

	// ErrEmptyValue indicates a provider returned an empty secret in strict mode.
	ErrEmptyValue = errors.New("secret: provider returned empty value")
)
