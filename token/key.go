package token

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Key identifies a cached credential. Two keys built from the same tenant,
// client, flow and scope set are equal regardless of scope order.
type Key struct {
	// Tenant is the tenant or account identifier.
	Tenant string

	// ClientID is the client identifier.
	ClientID string

	// Flow names the acquisition flow (e.g. "client_credentials",
	// "refresh_token", "certificate", "managed_identity").
	Flow string

	id string
}

// NewKey derives a cache key. Scopes are sorted and de-duplicated so that
// scope order never affects key equality.
func NewKey(tenant, clientID, flow string, scopes []string) Key {
	canonical := strings.Join([]string{tenant, clientID, flow, CanonicalScopes(scopes)}, "\n")
	sum := sha256.Sum256([]byte(canonical))

	return Key{
		Tenant:   tenant,
		ClientID: clientID,
		Flow:     flow,
		id:       "token:" + hex.EncodeToString(sum[:8]),
	}
}

// ID returns the derived cache identity.
func (k Key) ID() string { return k.id }

// String returns the derived identity, not the constituent parts.
func (k Key) String() string { return k.id }

// CanonicalScopes returns the sorted, de-duplicated, space-joined scope set.
func CanonicalScopes(scopes []string) string {
	if len(scopes) == 0 {
		return ""
	}

	seen := make(map[string]struct{}, len(scopes))
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return strings.Join(out, " ")
}
