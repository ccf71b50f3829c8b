package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/driftworks/apiward/apierr"
)

func retryableErr() error {
	return apierr.New(apierr.KindServer, apierr.CodeInternal, true, "backend unavailable")
}

func terminalErr() error {
	return apierr.New(apierr.KindRequest, apierr.CodeInvalidRequest, false, "bad request")
}

// fakeClock drives the breaker's lazy transitions in tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})

	if cb.config.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %d, want 5", cb.config.FailureThreshold)
	}
	if cb.config.FailureWindow != 30*time.Second {
		t.Errorf("FailureWindow = %v, want 30s", cb.config.FailureWindow)
	}
	if cb.config.ResetTimeout != 60*time.Second {
		t.Errorf("ResetTimeout = %v, want 60s", cb.config.ResetTimeout)
	}
	if cb.config.SuccessThreshold != 3 {
		t.Errorf("SuccessThreshold = %d, want 3", cb.config.SuccessThreshold)
	}
	if cb.State() != StateClosed {
		t.Errorf("initial state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3})

	for i := 0; i < 2; i++ {
		cb.RecordFailure(retryableErr())
		if cb.State() != StateClosed {
			t.Fatalf("after %d failures, state = %v, want closed", i+1, cb.State())
		}
	}

	cb.RecordFailure(retryableErr())
	if cb.State() != StateOpen {
		t.Fatalf("after 3 failures, state = %v, want open", cb.State())
	}
	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Allow() when open = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_TerminalErrorsDoNotCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2})

	for i := 0; i < 10; i++ {
		cb.RecordFailure(terminalErr())
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed (terminal errors must not trip)", cb.State())
	}
}

func TestCircuitBreaker_FailureWindowRestartsStaleStreak(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		FailureWindow:    30 * time.Second,
		Now:              clock.Now,
	})

	cb.RecordFailure(retryableErr())
	cb.RecordFailure(retryableErr())

	// Streak goes stale; count restarts at the next failure.
	clock.Advance(31 * time.Second)
	cb.RecordFailure(retryableErr())
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed (stale streak restarted)", cb.State())
	}

	cb.RecordFailure(retryableErr())
	cb.RecordFailure(retryableErr())
	if cb.State() != StateOpen {
		t.Errorf("state = %v, want open (fresh streak hit threshold)", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     60 * time.Second,
		Now:              clock.Now,
	})

	cb.RecordFailure(retryableErr())
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}
	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Allow() = %v, want ErrCircuitOpen", err)
	}

	clock.Advance(60 * time.Second)
	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() after reset timeout = %v, want nil probe", err)
	}
	if cb.State() != StateHalfOpen {
		t.Errorf("state = %v, want half-open", cb.State())
	}
}

func TestCircuitBreaker_ClosesAfterSuccessThreshold(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Second,
		SuccessThreshold: 3,
		Now:              clock.Now,
	})

	cb.RecordFailure(retryableErr())
	clock.Advance(time.Second)

	cb.RecordSuccess()
	cb.RecordSuccess()
	if cb.State() != StateHalfOpen {
		t.Fatalf("after 2 probe successes, state = %v, want half-open", cb.State())
	}

	cb.RecordSuccess()
	if cb.State() != StateClosed {
		t.Errorf("after 3 probe successes, state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_ProbeFailureReopens(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Second,
		Now:              clock.Now,
	})

	cb.RecordFailure(retryableErr())
	clock.Advance(time.Second)

	cb.RecordSuccess() // one probe success, not enough to close
	cb.RecordFailure(retryableErr())
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open (probe failed)", cb.State())
	}

	// The reset timeout restarts from the reopen.
	clock.Advance(500 * time.Millisecond)
	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Allow() before full reset timeout = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_SuccessResetsClosedStreak(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3})

	cb.RecordFailure(retryableErr())
	cb.RecordFailure(retryableErr())
	cb.RecordSuccess()
	cb.RecordFailure(retryableErr())
	cb.RecordFailure(retryableErr())

	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed (success reset the streak)", cb.State())
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	clock := newFakeClock()
	var transitions []struct{ from, to State }
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Second,
		SuccessThreshold: 1,
		Now:              clock.Now,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, struct{ from, to State }{from, to})
		},
	})

	cb.RecordFailure(retryableErr())
	clock.Advance(time.Second)
	_ = cb.State()
	cb.RecordSuccess()

	want := []struct{ from, to State }{
		{StateClosed, StateOpen},
		{StateOpen, StateHalfOpen},
		{StateHalfOpen, StateClosed},
	}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %v -> %v, want %v -> %v",
				i, transitions[i].from, transitions[i].to, want[i].from, want[i].to)
		}
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour})

	cb.RecordFailure(retryableErr())
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	cb.Reset()
	if cb.State() != StateClosed {
		t.Errorf("state after Reset = %v, want closed", cb.State())
	}
	if err := cb.Allow(); err != nil {
		t.Errorf("Allow() after Reset = %v, want nil", err)
	}
}

func TestCircuitBreaker_Profiles(t *testing.T) {
	tests := []struct {
		name      string
		config    CircuitBreakerConfig
		threshold int
		reset     time.Duration
	}{
		{"default", DefaultCircuitConfig(), 5, 60 * time.Second},
		{"critical", CriticalPathCircuitConfig(), 3, 30 * time.Second},
		{"background", BackgroundCircuitConfig(), 20, 120 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.config.FailureThreshold != tt.threshold {
				t.Errorf("FailureThreshold = %d, want %d", tt.config.FailureThreshold, tt.threshold)
			}
			if tt.config.ResetTimeout != tt.reset {
				t.Errorf("ResetTimeout = %v, want %v", tt.config.ResetTimeout, tt.reset)
			}
		})
	}
}

func TestCircuitBreaker_Metrics(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 5})

	cb.RecordFailure(retryableErr())
	cb.RecordFailure(retryableErr())

	m := cb.Metrics()
	if m.State != StateClosed {
		t.Errorf("Metrics.State = %v, want closed", m.State)
	}
	if m.Failures != 2 {
		t.Errorf("Metrics.Failures = %d, want 2", m.Failures)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("State.String() = %v, want %v", got, tt.want)
			}
		})
	}
}
