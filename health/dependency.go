package health

import (
	"context"
	"fmt"

	"github.com/driftworks/apiward/resilience"
	"github.com/driftworks/apiward/token"
)

// CircuitChecker reports the state of a circuit breaker guarding an
// upstream API. An open circuit means the upstream is being rejected
// outright; half-open means recovery is being probed.
type CircuitChecker struct {
	name    string
	breaker *resilience.CircuitBreaker
}

// NewCircuitChecker creates a checker for the given breaker.
func NewCircuitChecker(name string, breaker *resilience.CircuitBreaker) *CircuitChecker {
	return &CircuitChecker{name: name, breaker: breaker}
}

// Name returns the name of this checker.
func (c *CircuitChecker) Name() string {
	return c.name
}

// Check reports breaker state: open is unhealthy, half-open is degraded.
func (c *CircuitChecker) Check(ctx context.Context) Result {
	m := c.breaker.Metrics()
	details := map[string]any{
		"state":       m.State.String(),
		"failures":    m.Failures,
		"transitions": m.Transitions,
	}
	if !m.OpenedAt.IsZero() {
		details["opened_at"] = m.OpenedAt
	}

	switch m.State {
	case resilience.StateOpen:
		return Unhealthy("circuit open, calls rejected", resilience.ErrCircuitOpen).WithDetails(details)
	case resilience.StateHalfOpen:
		return Degraded("circuit half-open, probing recovery").WithDetails(details)
	default:
		return Healthy("circuit closed").WithDetails(details)
	}
}

// LimiterChecker reports rate limiter saturation. A fully saturated
// concurrency gate means new calls are queueing behind in-flight ones.
type LimiterChecker struct {
	name    string
	limiter *resilience.Limiter
}

// NewLimiterChecker creates a checker for the given limiter.
func NewLimiterChecker(name string, limiter *resilience.Limiter) *LimiterChecker {
	return &LimiterChecker{name: name, limiter: limiter}
}

// Name returns the name of this checker.
func (c *LimiterChecker) Name() string {
	return c.name
}

// Check reports degraded when every concurrency slot is in use.
func (c *LimiterChecker) Check(ctx context.Context) Result {
	m := c.limiter.Metrics()
	details := map[string]any{
		"in_flight":      m.InFlight,
		"max_concurrent": m.MaxConcurrent,
		"bucket_tokens":  m.BucketTokens,
		"throttled":      m.Throttled,
	}
	if m.WindowRemaining >= 0 {
		details["window_remaining"] = m.WindowRemaining
	}

	if m.InFlight >= m.MaxConcurrent {
		msg := fmt.Sprintf("all %d concurrency slots in use", m.MaxConcurrent)
		return Degraded(msg).WithDetails(details)
	}
	if m.WindowRemaining == 0 {
		return Degraded("quota window exhausted").WithDetails(details)
	}
	return Healthy("limiter has capacity").WithDetails(details)
}

// TokenChecker reports whether a cached credential for a given key is
// usable. A token past its refresh skew is degraded; a missing or
// expired token is unhealthy, since the next call must block on the
// token endpoint before it can go out.
type TokenChecker struct {
	name  string
	cache *token.Cache
	key   token.Key
}

// NewTokenChecker creates a checker for the given cache entry.
func NewTokenChecker(name string, cache *token.Cache, key token.Key) *TokenChecker {
	return &TokenChecker{name: name, cache: cache, key: key}
}

// Name returns the name of this checker.
func (c *TokenChecker) Name() string {
	return c.name
}

// Check reports the cache state for the configured key.
func (c *TokenChecker) Check(ctx context.Context) Result {
	lookup := c.cache.Lookup(c.key)
	details := map[string]any{
		"key":          c.key.ID(),
		"state":        lookup.State.String(),
		"cached_total": c.cache.Len(),
	}
	if lookup.Token != nil {
		details["expires_at"] = lookup.Token.ExpiresAt
	}

	switch lookup.State {
	case token.StateValid:
		return Healthy("token valid").WithDetails(details)
	case token.StateNeedsRefresh:
		return Degraded("token inside refresh skew").WithDetails(details)
	case token.StateExpired:
		return Unhealthy("token expired", nil).WithDetails(details)
	default:
		return Unhealthy("no token cached", nil).WithDetails(details)
	}
}
