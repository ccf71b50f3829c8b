package token

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/driftworks/apiward/apierr"
)

// Provider performs the network token acquisition or refresh exchange.
// Implementations exist per auth flow (client credentials, refresh token,
// certificate assertion, managed identity); the manager treats them all
// uniformly through this one capability.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: failures should be classified *apierr.Error values so the
//   manager can tell transient exchange failures from terminal ones.
type Provider interface {
	AcquireOrRefresh(ctx context.Context, scopes []string, prior *Token) (*Token, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, scopes []string, prior *Token) (*Token, error)

// AcquireOrRefresh calls the function.
func (f ProviderFunc) AcquireOrRefresh(ctx context.Context, scopes []string, prior *Token) (*Token, error) {
	return f(ctx, scopes, prior)
}

// ManagerConfig configures the token manager.
type ManagerConfig struct {
	// Cache is the token cache. Required.
	Cache *Cache

	// Provider performs the acquisition exchange. Required.
	Provider Provider

	// RefreshRetries is how many extra attempts a retryable refresh
	// failure gets. This is the manager's own small allowance for
	// "expired token, refresh once" semantics, separate from request
	// retry policy.
	// Default: 1
	RefreshRetries int

	// OnLookup is called after each cache lookup with the observed state.
	OnLookup func(key Key, state State)

	// OnRefresh is called after each refresh flight completes.
	OnRefresh func(key Key, err error)
}

// Manager composes the cache with a credential provider. At most one refresh
// is in flight per key; concurrent callers for the same key share that
// flight's outcome.
type Manager struct {
	config ManagerConfig
	group  singleflight.Group
}

// NewManager creates a token manager.
func NewManager(config ManagerConfig) *Manager {
	if config.RefreshRetries <= 0 {
		config.RefreshRetries = 1
	}

	return &Manager{config: config}
}

// Token returns a valid token for key, refreshing through the provider when
// the cache cannot serve one. The cached-valid path performs no I/O.
//
// If the caller's context is cancelled while a refresh is in flight, the
// caller gets ctx.Err() immediately but the refresh itself continues in the
// background and populates the cache for the other waiters; aborting it
// would starve them.
func (m *Manager) Token(ctx context.Context, key Key, scopes []string) (*Token, error) {
	if m.config.Cache == nil {
		return nil, ErrNoCache
	}
	if m.config.Provider == nil {
		return nil, ErrNoProvider
	}

	lkp := m.config.Cache.Lookup(key)
	if m.config.OnLookup != nil {
		m.config.OnLookup(key, lkp.State)
	}
	if lkp.State == StateValid {
		return lkp.Token, nil
	}

	prior := lkp.Token // stale token for NeedsRefresh, nil otherwise

	// The flight runs detached from the triggering caller's cancellation.
	ch := m.group.DoChan(key.ID(), func() (any, error) {
		return m.refresh(context.WithoutCancel(ctx), key, scopes, prior)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Token), nil
	}
}

// Invalidate evicts the cached token for key.
func (m *Manager) Invalidate(key Key) {
	if m.config.Cache != nil {
		m.config.Cache.Invalidate(key)
	}
}

// refresh performs the exchange, with the manager's small retry allowance
// for transient failures. Terminal authentication failures evict any stale
// entry so later callers see Missing rather than looping on NeedsRefresh.
func (m *Manager) refresh(ctx context.Context, key Key, scopes []string, prior *Token) (*Token, error) {
	var lastErr error

	for attempt := 0; attempt <= m.config.RefreshRetries; attempt++ {
		tok, err := m.config.Provider.AcquireOrRefresh(ctx, scopes, prior)
		if err == nil {
			m.config.Cache.Store(key, tok)
			if m.config.OnRefresh != nil {
				m.config.OnRefresh(key, nil)
			}
			return tok, nil
		}

		lastErr = err
		if !apierr.IsRetryable(err) {
			break
		}
	}

	if isTerminalAuthFailure(lastErr) {
		m.config.Cache.Invalidate(key)
	}
	if m.config.OnRefresh != nil {
		m.config.OnRefresh(key, lastErr)
	}
	return nil, lastErr
}

// isTerminalAuthFailure reports whether err means the credential itself is
// dead (revoked grant, failed refresh) rather than the exchange being flaky.
func isTerminalAuthFailure(err error) bool {
	e := apierr.FromError(err)
	if e == nil {
		return false
	}
	return e.Kind == apierr.KindAuthentication && !e.Retryable
}
