// Package credential implements token providers for the OAuth2 grant
// flows the engine supports: client secret, refresh token, signed
// client assertion, platform managed identity, and on-behalf-of
// exchange.
//
// Every provider satisfies token.Provider through a single
// AcquireOrRefresh method, so the token manager treats initial
// acquisition and refresh uniformly. Failures from the token endpoint
// come back as classified errors; invalid_grant and its relatives are
// terminal so callers never retry a revoked credential.
//
// Provider configs take their client secrets and signing keys as
// redacted secret values. Secrets loads those from secretref/env
// references through a secret.Resolver, so plaintext credential
// material never sits in configuration.
package credential
