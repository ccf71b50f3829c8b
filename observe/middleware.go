package observe

import (
	"context"
	"time"

	"github.com/driftworks/apiward/apierr"
	"github.com/driftworks/apiward/resilience"
	"github.com/driftworks/apiward/token"
)

// Middleware wraps API calls with tracing, metrics, and logging, and
// provides hook adapters for the resilience layers' callbacks.
//
// Contract:
//   - Concurrency: Call is safe for concurrent use.
//   - Errors: errors from the wrapped function are recorded and
//     propagated unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given components.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// NewMiddlewareFromObserver creates a Middleware from an Observer.
func NewMiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Call runs fn inside a span, records request metrics, and logs the
// outcome. Classified errors contribute their kind and code to the log
// entry.
func (m *Middleware) Call(ctx context.Context, meta OpMeta, fn func(context.Context) error) error {
	if meta.Service == "" || meta.Operation == "" {
		return ErrMissingOperation
	}

	ctx, span := m.tracer.StartSpan(ctx, meta)
	start := time.Now()

	err := fn(ctx)
	duration := time.Since(start)

	m.tracer.EndSpan(span, err)
	m.metrics.RecordRequest(ctx, meta, duration, err)

	opLogger := m.logger.WithOp(meta)
	fields := []Field{
		{Key: "duration_ms", Value: float64(duration.Milliseconds())},
	}

	if err != nil {
		fields = append(fields, Field{Key: "error", Value: err.Error()})
		if ce := apierr.FromError(err); ce != nil {
			fields = append(fields,
				Field{Key: "error_kind", Value: ce.Kind.String()},
				Field{Key: "error_code", Value: string(ce.Code)},
				Field{Key: "retryable", Value: ce.Retryable},
			)
			if ce.CorrelationID != "" {
				fields = append(fields, Field{Key: "correlation_id", Value: ce.CorrelationID})
			}
		}
		opLogger.Error(ctx, "api call failed", fields...)
	} else {
		opLogger.Info(ctx, "api call completed", fields...)
	}

	return err
}

// RetryHook adapts the middleware for resilience.Policy.OnRetry.
func (m *Middleware) RetryHook(meta OpMeta) func(attempt int, err error, delay time.Duration) {
	return func(attempt int, err error, delay time.Duration) {
		ctx := context.Background()
		m.metrics.RecordRetry(ctx, meta, attempt, delay)
		m.logger.WithOp(meta).Warn(ctx, "retrying api call",
			Field{Key: "attempt", Value: attempt},
			Field{Key: "delay_ms", Value: float64(delay.Milliseconds())},
			Field{Key: "error", Value: err.Error()},
		)
	}
}

// CircuitHook adapts the middleware for CircuitBreakerConfig.OnStateChange.
func (m *Middleware) CircuitHook(service string) func(from, to resilience.State) {
	return func(from, to resilience.State) {
		ctx := context.Background()
		m.metrics.RecordCircuitTransition(ctx, service, from.String(), to.String())
		m.logger.Warn(ctx, "circuit state changed",
			Field{Key: "api.service", Value: service},
			Field{Key: "from", Value: from.String()},
			Field{Key: "to", Value: to.String()},
		)
	}
}

// ThrottleHook adapts the middleware for LimiterConfig.OnThrottle.
func (m *Middleware) ThrottleHook(service string) func(wait time.Duration) {
	return func(wait time.Duration) {
		m.metrics.RecordThrottle(context.Background(), service, wait)
	}
}

// LookupHook adapts the middleware for ManagerConfig.OnLookup. A valid
// cached token counts as a hit; everything else forces provider I/O.
func (m *Middleware) LookupHook() func(key token.Key, state token.State) {
	return func(_ token.Key, state token.State) {
		m.metrics.RecordCacheLookup(context.Background(), state == token.StateValid)
	}
}
