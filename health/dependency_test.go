package health

import (
	"context"
	"testing"
	"time"

	"github.com/driftworks/apiward/apierr"
	"github.com/driftworks/apiward/resilience"
	"github.com/driftworks/apiward/secret"
	"github.com/driftworks/apiward/token"
)

func TestCircuitChecker(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{FailureThreshold: 2})
	checker := NewCircuitChecker("drive-circuit", cb)

	if got := checker.Check(context.Background()); got.Status != StatusHealthy {
		t.Errorf("closed circuit status = %v, want healthy", got.Status)
	}

	boom := apierr.New(apierr.KindServer, apierr.CodeServiceUnavailable, true, "boom")
	cb.RecordFailure(boom)
	cb.RecordFailure(boom)

	got := checker.Check(context.Background())
	if got.Status != StatusUnhealthy {
		t.Fatalf("open circuit status = %v, want unhealthy", got.Status)
	}
	if got.Details["state"] != "open" {
		t.Errorf("details[state] = %v, want open", got.Details["state"])
	}
}

func TestCircuitChecker_HalfOpen(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		Now:              func() time.Time { return clock() },
	})
	checker := NewCircuitChecker("drive-circuit", cb)

	cb.RecordFailure(apierr.New(apierr.KindServer, apierr.CodeServiceUnavailable, true, "boom"))

	later := now.Add(2 * time.Minute)
	clock = func() time.Time { return later }

	if got := checker.Check(context.Background()); got.Status != StatusDegraded {
		t.Errorf("half-open circuit status = %v, want degraded", got.Status)
	}
}

func TestLimiterChecker(t *testing.T) {
	l := resilience.NewLimiter(resilience.LimiterConfig{MaxConcurrent: 1})
	checker := NewLimiterChecker("drive-limiter", l)

	if got := checker.Check(context.Background()); got.Status != StatusHealthy {
		t.Errorf("idle limiter status = %v, want healthy", got.Status)
	}

	permit, err := l.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer permit.Release()

	got := checker.Check(context.Background())
	if got.Status != StatusDegraded {
		t.Errorf("saturated limiter status = %v, want degraded", got.Status)
	}
	if got.Details["in_flight"] != 1 {
		t.Errorf("details[in_flight] = %v, want 1", got.Details["in_flight"])
	}
}

func TestTokenChecker(t *testing.T) {
	now := time.Now()
	cache := token.NewCache(token.CacheConfig{
		RefreshSkew: 5 * time.Minute,
		Now:         func() time.Time { return now },
	})
	key := token.NewKey("acme", "client-1", "client_credentials", []string{"drive.read"})
	checker := NewTokenChecker("drive-token", cache, key)

	if got := checker.Check(context.Background()); got.Status != StatusUnhealthy {
		t.Errorf("missing token status = %v, want unhealthy", got.Status)
	}

	cache.Store(key, &token.Token{Value: secret.New("tok"), ExpiresAt: now.Add(time.Hour)})
	if got := checker.Check(context.Background()); got.Status != StatusHealthy {
		t.Errorf("valid token status = %v, want healthy", got.Status)
	}

	cache.Store(key, &token.Token{Value: secret.New("tok"), ExpiresAt: now.Add(time.Minute)})
	if got := checker.Check(context.Background()); got.Status != StatusDegraded {
		t.Errorf("near-expiry token status = %v, want degraded", got.Status)
	}

	cache.Store(key, &token.Token{Value: secret.New("tok"), ExpiresAt: now.Add(-time.Minute)})
	got := checker.Check(context.Background())
	if got.Status != StatusUnhealthy {
		t.Errorf("expired token status = %v, want unhealthy", got.Status)
	}
	if got.Details["state"] != "expired" {
		t.Errorf("details[state] = %v, want expired", got.Details["state"])
	}
}
