// Package secret keeps credential material out of logs and resolves secret
// references in credential configuration.
//
// Value wraps sensitive strings (client secrets, refresh tokens, access
// tokens, private key PEM) so that the default string, JSON and fmt
// conversions always produce a redacted marker. The wrapped bytes can be
// zeroed with Scrub when a credential is evicted.
//
// Configuration values of the form "secretref:<provider>:<ref>" are resolved
// through registered providers; "${VAR}" references are expanded from the
// environment, erroring on missing variables rather than silently producing
// empty credentials.
package secret
