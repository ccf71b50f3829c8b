package health

import (
	"context"
	"time"
)

// Status is the reported condition of a client dependency.
type Status int

const (
	// StatusHealthy means calls through the dependency flow normally.
	StatusHealthy Status = iota
	// StatusDegraded means calls still go out but under pressure: a
	// half-open circuit, a saturated limiter, or a token inside its
	// refresh skew.
	StatusDegraded
	// StatusUnhealthy means the next call is expected to fail or block:
	// an open circuit, or a missing or expired token.
	StatusUnhealthy
)

// String returns the status as a lowercase word.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Result is one checker's report. Details carries component state such
// as breaker counters or limiter occupancy for operators to inspect.
type Result struct {
	Status  Status
	Message string
	Details map[string]any

	// Duration is how long the check took; the aggregator fills it in.
	Duration time.Duration

	// Timestamp is when the check ran.
	Timestamp time.Time

	// Error is set for unhealthy results that carry a cause, such as
	// ErrCircuitOpen or a check timeout.
	Error error
}

// Healthy builds a passing result stamped now.
func Healthy(message string) Result {
	return Result{Status: StatusHealthy, Message: message, Timestamp: time.Now()}
}

// Degraded builds a result for a dependency under pressure.
func Degraded(message string) Result {
	return Result{Status: StatusDegraded, Message: message, Timestamp: time.Now()}
}

// Unhealthy builds a failing result. err may be nil when the condition
// has no single cause, such as an expired cached token.
func Unhealthy(message string, err error) Result {
	return Result{Status: StatusUnhealthy, Message: message, Error: err, Timestamp: time.Now()}
}

// WithDetails returns a copy of the result carrying the given details.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// Checker reports the condition of one dependency. Implementations read
// component state and must not perform outbound API calls; a check that
// burned quota or tripped breakers would distort what it measures.
type Checker interface {
	// Name identifies the checker within an aggregator.
	Name() string

	// Check reports the dependency's current condition. It should
	// honor ctx, though state-reading checks rarely need to block.
	Check(ctx context.Context) Result
}

// CheckerFunc wraps a plain function as a named Checker.
type CheckerFunc struct {
	name  string
	check func(context.Context) Result
}

// NewCheckerFunc creates a CheckerFunc.
func NewCheckerFunc(name string, check func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, check: check}
}

// Name identifies the checker.
func (f *CheckerFunc) Name() string { return f.name }

// Check invokes the wrapped function.
func (f *CheckerFunc) Check(ctx context.Context) Result { return f.check(ctx) }

var _ Checker = (*CheckerFunc)(nil)
