package token

import (
	"time"

	"github.com/driftworks/apiward/secret"
)

// Token is a cached credential. Replaced wholesale on refresh, never edited
// in place.
type Token struct {
	// Value is the opaque token secret.
	Value *secret.Value

	// Type is the token kind used in the Authorization header.
	// Default: "Bearer"
	Type string

	// ExpiresAt is the absolute expiry instant.
	ExpiresAt time.Time

	// Scopes is the granted scope set.
	Scopes []string

	// RefreshSecret optionally carries the refresh token or reference
	// needed to renew without a full re-acquisition.
	RefreshSecret *secret.Value
}

// Expired reports whether the token is unusable at now.
func (t *Token) Expired(now time.Time) bool {
	return t == nil || !now.Before(t.ExpiresAt)
}

// NeedsRefresh reports whether now is within skew of expiry.
func (t *Token) NeedsRefresh(now time.Time, skew time.Duration) bool {
	return t == nil || !now.Before(t.ExpiresAt.Add(-skew))
}

// HasScopes reports whether the token's granted scopes cover required.
func (t *Token) HasScopes(required []string) bool {
	if t == nil {
		return false
	}
	granted := make(map[string]struct{}, len(t.Scopes))
	for _, s := range t.Scopes {
		granted[s] = struct{}{}
	}
	for _, s := range required {
		if _, ok := granted[s]; !ok {
			return false
		}
	}
	return true
}

// AuthHeader builds the Authorization header value. The only sanctioned way
// to read the token secret out of this package.
func (t *Token) AuthHeader() string {
	if t == nil || t.Value.Empty() {
		return ""
	}
	typ := t.Type
	if typ == "" {
		typ = "Bearer"
	}
	return typ + " " + t.Value.Reveal()
}

// scrub zeroes the token's secrets. Called on cache eviction.
func (t *Token) scrub() {
	if t == nil {
		return
	}
	t.Value.Scrub()
	t.RefreshSecret.Scrub()
}
