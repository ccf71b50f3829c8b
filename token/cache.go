package token

import (
	"sync"
	"time"
)

// State is the per-key lifecycle state reported by Cache.Lookup.
type State int

const (
	// StateMissing means no token is cached for the key.
	StateMissing State = iota
	// StateValid means the cached token is usable without I/O.
	StateValid
	// StateNeedsRefresh means the token is within the refresh skew of
	// expiry; it is still usable but should be renewed proactively.
	StateNeedsRefresh
	// StateExpired means the cached token is past expiry and must not be
	// used.
	StateExpired
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateMissing:
		return "missing"
	case StateValid:
		return "valid"
	case StateNeedsRefresh:
		return "needs-refresh"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Lookup is the result of a cache read. Token carries the valid token, or
// the stale-but-usable token in StateNeedsRefresh; it is nil for
// StateMissing and StateExpired.
type Lookup struct {
	State State
	Token *Token
}

// CacheConfig configures the token cache.
type CacheConfig struct {
	// RefreshSkew is how long before expiry a token is reported as
	// NeedsRefresh. Injected rather than hardcoded: short-lived tokens
	// want a smaller skew than 1h tokens.
	// Default: 5 minutes
	RefreshSkew time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Cache holds cached credentials keyed by scope-set identity. Lookup never
// performs I/O; refresh is the Manager's job.
type Cache struct {
	config CacheConfig

	mu      sync.RWMutex
	entries map[string]*Token
}

// NewCache creates a token cache.
func NewCache(config CacheConfig) *Cache {
	if config.RefreshSkew <= 0 {
		config.RefreshSkew = 5 * time.Minute
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &Cache{
		config:  config,
		entries: make(map[string]*Token),
	}
}

// Lookup reports the state of the cached token for key. A token past expiry
// is never returned, even if still present.
func (c *Cache) Lookup(key Key) Lookup {
	c.mu.RLock()
	tok, ok := c.entries[key.ID()]
	c.mu.RUnlock()

	if !ok {
		return Lookup{State: StateMissing}
	}

	now := c.config.Now()
	switch {
	case tok.Expired(now):
		return Lookup{State: StateExpired}
	case tok.NeedsRefresh(now, c.config.RefreshSkew):
		return Lookup{State: StateNeedsRefresh, Token: tok}
	default:
		return Lookup{State: StateValid, Token: tok}
	}
}

// Store replaces the cached token for key.
func (c *Cache) Store(key Key, tok *Token) {
	c.mu.Lock()
	c.entries[key.ID()] = tok
	c.mu.Unlock()
}

// Invalidate evicts and scrubs the cached token for key. Idempotent.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	tok := c.entries[key.ID()]
	delete(c.entries, key.ID())
	c.mu.Unlock()

	tok.scrub()
}

// Len returns the number of cached entries, including expired ones not yet
// evicted.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
