package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/driftworks/apiward/apierr"
)

// JitterKind selects how computed backoff delays are randomized.
type JitterKind int

const (
	// JitterFull draws uniformly from [0, delay]. This is the default:
	// it spreads synchronized clients most aggressively.
	JitterFull JitterKind = iota
	// JitterNone uses the computed delay unchanged.
	JitterNone
	// JitterEqual draws uniformly from [delay/2, delay].
	JitterEqual
	// JitterDecorrelated draws uniformly from [base, prev*multiplier],
	// where prev is the previous attempt's actual delay.
	JitterDecorrelated
)

// String returns the string representation of the jitter kind.
func (j JitterKind) String() string {
	switch j {
	case JitterNone:
		return "none"
	case JitterFull:
		return "full"
	case JitterEqual:
		return "equal"
	case JitterDecorrelated:
		return "decorrelated"
	default:
		return "unknown"
	}
}

// Policy configures retry behavior.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Default: 3
	MaxAttempts int

	// BaseDelay is the delay before the first retry.
	// Default: 1 second
	BaseDelay time.Duration

	// MaxDelay caps every computed delay, including server-provided
	// retry-after values.
	// Default: 60 seconds
	MaxDelay time.Duration

	// Multiplier is the exponential growth factor between retries.
	// Default: 2.0
	Multiplier float64

	// Jitter selects the randomization strategy. Default: JitterFull.
	Jitter JitterKind

	// IgnoreRetryAfter disables honoring server-provided retry-after
	// delays. By default a server hint overrides the computed backoff.
	IgnoreRetryAfter bool

	// OnRetry is called before each sleep with the upcoming attempt
	// number (2 for the first retry), the error, and the chosen delay.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Override adjusts retry behavior for a specific error code.
type Override struct {
	// MaxAttempts replaces the policy's total attempt allowance.
	MaxAttempts int

	// FallbackDelay replaces exponential backoff when the error carries
	// no server-provided retry-after.
	FallbackDelay time.Duration
}

// DefaultOverrides returns the per-code adjustments applied by
// NewExecutor: quota errors wait on fixed schedules matched to how the
// corresponding server limits replenish, and an expired token gets
// exactly one refresh-and-retry.
func DefaultOverrides() map[apierr.Code]Override {
	return map[apierr.Code]Override{
		apierr.CodeUserRateLimit:      {MaxAttempts: 5, FallbackDelay: 60 * time.Second},
		apierr.CodeProjectRateLimit:   {MaxAttempts: 3, FallbackDelay: 5 * time.Minute},
		apierr.CodeServiceUnavailable: {MaxAttempts: 3, FallbackDelay: 30 * time.Second},
		apierr.CodeExpiredToken:       {MaxAttempts: 2},
	}
}

// Executor runs operations with classified-error-aware retries.
type Executor struct {
	policy    Policy
	overrides map[apierr.Code]Override

	// randFloat is swappable for deterministic tests.
	randFloat func() float64
}

// NewExecutor creates a retry executor with the default overrides.
func NewExecutor(policy Policy) *Executor {
	return NewExecutorWithOverrides(policy, DefaultOverrides())
}

// NewExecutorWithOverrides creates a retry executor with explicit
// per-code overrides. Pass nil to disable overrides entirely.
func NewExecutorWithOverrides(policy Policy, overrides map[apierr.Code]Override) *Executor {
	// Apply defaults
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = time.Second
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 60 * time.Second
	}
	if policy.Multiplier <= 1 {
		policy.Multiplier = 2.0
	}

	return &Executor{
		policy:    policy,
		overrides: overrides,
		randFloat: rand.Float64,
	}
}

// Execute runs op, retrying classified retryable errors until the
// attempt allowance is exhausted or the context ends. The last error is
// returned unchanged; non-retryable and unclassified errors fail
// immediately.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	prev := e.policy.BaseDelay

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}

		ce := apierr.FromError(err)
		if ce == nil || !ce.Retryable {
			return err
		}

		maxAttempts := e.policy.MaxAttempts
		var fallback time.Duration
		if ov, ok := e.overrides[ce.Code]; ok {
			if ov.MaxAttempts > 0 {
				maxAttempts = ov.MaxAttempts
			}
			fallback = ov.FallbackDelay
		}
		if attempt >= maxAttempts {
			return err
		}

		delay := e.delay(attempt, prev, ce, fallback)
		prev = delay

		if e.policy.OnRetry != nil {
			e.policy.OnRetry(attempt+1, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// delay picks the sleep before retry number attempt+1. A server-provided
// retry-after wins over everything except the cap and is never jittered;
// otherwise a per-code fallback or exponential backoff applies, with the
// policy's jitter.
func (e *Executor) delay(attempt int, prev time.Duration, ce *apierr.Error, fallback time.Duration) time.Duration {
	if !e.policy.IgnoreRetryAfter && ce.RetryAfter > 0 {
		return min(ce.RetryAfter, e.policy.MaxDelay)
	}

	var d time.Duration
	if fallback > 0 {
		d = min(fallback, e.policy.MaxDelay)
	} else {
		d = e.backoff(attempt)
	}

	switch e.policy.Jitter {
	case JitterNone:
		return d
	case JitterEqual:
		half := d / 2
		return half + time.Duration(e.randFloat()*float64(half))
	case JitterDecorrelated:
		lo := float64(e.policy.BaseDelay)
		hi := float64(prev) * e.policy.Multiplier
		if hi < lo {
			hi = lo
		}
		return min(time.Duration(lo+e.randFloat()*(hi-lo)), e.policy.MaxDelay)
	default: // JitterFull
		return time.Duration(e.randFloat() * float64(d))
	}
}

// backoff computes base * multiplier^(attempt-1), capped at MaxDelay.
func (e *Executor) backoff(attempt int) time.Duration {
	d := float64(e.policy.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= e.policy.Multiplier
		if d >= float64(e.policy.MaxDelay) {
			return e.policy.MaxDelay
		}
	}
	return min(time.Duration(d), e.policy.MaxDelay)
}
