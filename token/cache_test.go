package token

import (
	"testing"
	"time"

	"github.com/driftworks/apiward/secret"
)

func testKey() Key {
	return NewKey("tenant", "client", "client_credentials", []string{"scope"})
}

func TestCache_Lifecycle(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	clock := now
	c := NewCache(CacheConfig{
		RefreshSkew: 5 * time.Minute,
		Now:         func() time.Time { return clock },
	})
	key := testKey()

	if got := c.Lookup(key); got.State != StateMissing {
		t.Fatalf("Lookup() = %v, want missing", got.State)
	}

	c.Store(key, &Token{
		Value:     secret.New("tok"),
		ExpiresAt: now.Add(time.Hour),
	})

	// Well before expiry minus skew: valid.
	if got := c.Lookup(key); got.State != StateValid || got.Token == nil {
		t.Errorf("Lookup() = %v, want valid with token", got.State)
	}

	// Inside the skew window: needs refresh, stale token still returned.
	clock = now.Add(56 * time.Minute)
	got := c.Lookup(key)
	if got.State != StateNeedsRefresh {
		t.Errorf("Lookup() = %v, want needs-refresh", got.State)
	}
	if got.Token == nil {
		t.Error("stale token not returned during skew window")
	}

	// At expiry: expired, token never returned.
	clock = now.Add(time.Hour)
	got = c.Lookup(key)
	if got.State != StateExpired {
		t.Errorf("Lookup() = %v, want expired", got.State)
	}
	if got.Token != nil {
		t.Error("expired token returned")
	}
}

func TestCache_SkewBoundary(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	clock := now
	c := NewCache(CacheConfig{
		RefreshSkew: 300 * time.Second,
		Now:         func() time.Time { return clock },
	})
	key := testKey()
	c.Store(key, &Token{Value: secret.New("tok"), ExpiresAt: now.Add(10 * time.Minute)})

	// One instant before E-S: still valid.
	clock = now.Add(5*time.Minute - time.Nanosecond)
	if got := c.Lookup(key); got.State != StateValid {
		t.Errorf("Lookup() just before skew = %v, want valid", got.State)
	}

	// Exactly E-S: needs refresh.
	clock = now.Add(5 * time.Minute)
	if got := c.Lookup(key); got.State != StateNeedsRefresh {
		t.Errorf("Lookup() at skew boundary = %v, want needs-refresh", got.State)
	}
}

func TestCache_DefaultSkew(t *testing.T) {
	c := NewCache(CacheConfig{})
	if c.config.RefreshSkew != 5*time.Minute {
		t.Errorf("RefreshSkew = %v, want 5m", c.config.RefreshSkew)
	}
}

func TestCache_Invalidate(t *testing.T) {
	c := NewCache(CacheConfig{})
	key := testKey()
	val := secret.New("tok")
	c.Store(key, &Token{Value: val, ExpiresAt: time.Now().Add(time.Hour)})

	c.Invalidate(key)

	if got := c.Lookup(key); got.State != StateMissing {
		t.Errorf("Lookup() after invalidate = %v, want missing", got.State)
	}
	if !val.Empty() {
		t.Error("secret not scrubbed on eviction")
	}

	// Idempotent.
	c.Invalidate(key)
}

func TestCache_StoreReplaces(t *testing.T) {
	now := time.Now()
	c := NewCache(CacheConfig{})
	key := testKey()

	c.Store(key, &Token{Value: secret.New("old"), ExpiresAt: now.Add(time.Hour)})
	c.Store(key, &Token{Value: secret.New("new"), ExpiresAt: now.Add(2 * time.Hour)})

	got := c.Lookup(key)
	if got.State != StateValid {
		t.Fatalf("Lookup() = %v, want valid", got.State)
	}
	if got.Token.Value.Reveal() != "new" {
		t.Errorf("token = %q, want new", got.Token.Value.Reveal())
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestToken_AuthHeader(t *testing.T) {
	tok := &Token{Value: secret.New("abc123")}
	if got := tok.AuthHeader(); got != "Bearer abc123" {
		t.Errorf("AuthHeader() = %q, want Bearer abc123", got)
	}

	tok = &Token{Value: secret.New("abc123"), Type: "MAC"}
	if got := tok.AuthHeader(); got != "MAC abc123" {
		t.Errorf("AuthHeader() = %q, want MAC abc123", got)
	}

	var nilTok *Token
	if got := nilTok.AuthHeader(); got != "" {
		t.Errorf("nil AuthHeader() = %q, want empty", got)
	}
}

func TestToken_HasScopes(t *testing.T) {
	tok := &Token{Scopes: []string{"a", "b", "c"}}

	if !tok.HasScopes([]string{"a", "c"}) {
		t.Error("HasScopes(subset) = false, want true")
	}
	if tok.HasScopes([]string{"a", "d"}) {
		t.Error("HasScopes(superset) = true, want false")
	}
	if !tok.HasScopes(nil) {
		t.Error("HasScopes(nil) = false, want true")
	}
}
