package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/driftworks/apiward/apierr"
)

// Metrics records API call metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordRequest records one logical API call with its duration and
	// classified outcome.
	RecordRequest(ctx context.Context, meta OpMeta, duration time.Duration, err error)

	// RecordRetry records one scheduled retry and its delay.
	RecordRetry(ctx context.Context, meta OpMeta, attempt int, delay time.Duration)

	// RecordCircuitTransition records a breaker state change.
	RecordCircuitTransition(ctx context.Context, service, from, to string)

	// RecordThrottle records a local rate-limit wait.
	RecordThrottle(ctx context.Context, service string, wait time.Duration)

	// RecordCacheLookup records a token cache hit or miss.
	RecordCacheLookup(ctx context.Context, hit bool)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	totalCount  metric.Int64Counter
	errorCount  metric.Int64Counter
	duration    metric.Float64Histogram
	retryCount  metric.Int64Counter
	transitions metric.Int64Counter
	throttled   metric.Int64Counter
	cacheHits   metric.Int64Counter
	cacheMisses metric.Int64Counter
}

// NewMetrics creates a Metrics instance on the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		"api.request.total",
		metric.WithDescription("Total number of API calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"api.request.errors",
		metric.WithDescription("Total number of failed API calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"api.request.duration_ms",
		metric.WithDescription("API call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	retryCount, err := meter.Int64Counter(
		"api.retry.total",
		metric.WithDescription("Total number of retries scheduled"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, err
	}

	transitions, err := meter.Int64Counter(
		"api.circuit.transitions",
		metric.WithDescription("Circuit breaker state transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	throttled, err := meter.Int64Counter(
		"api.ratelimit.throttled",
		metric.WithDescription("Requests delayed by local rate limiting"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"api.token.cache.hits",
		metric.WithDescription("Token cache lookups served without refresh"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"api.token.cache.misses",
		metric.WithDescription("Token cache lookups that required a refresh"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		totalCount:  totalCount,
		errorCount:  errorCount,
		duration:    duration,
		retryCount:  retryCount,
		transitions: transitions,
		throttled:   throttled,
		cacheHits:   cacheHits,
		cacheMisses: cacheMisses,
	}, nil
}

func (m *metricsImpl) RecordRequest(ctx context.Context, meta OpMeta, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("api.service", meta.Service),
		attribute.String("api.operation", meta.Operation),
	}

	opt := metric.WithAttributes(attrs...)
	m.totalCount.Add(ctx, 1, opt)
	m.duration.Record(ctx, float64(duration.Milliseconds()), opt)

	if err != nil {
		errAttrs := attrs
		if ce := apierr.FromError(err); ce != nil {
			errAttrs = append(errAttrs,
				attribute.String("api.error.kind", ce.Kind.String()),
				attribute.String("api.error.code", string(ce.Code)),
			)
		}
		m.errorCount.Add(ctx, 1, metric.WithAttributes(errAttrs...))
	}
}

func (m *metricsImpl) RecordRetry(ctx context.Context, meta OpMeta, attempt int, delay time.Duration) {
	m.retryCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("api.service", meta.Service),
		attribute.String("api.operation", meta.Operation),
		attribute.Int("api.retry.attempt", attempt),
	))
}

func (m *metricsImpl) RecordCircuitTransition(ctx context.Context, service, from, to string) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("api.service", service),
		attribute.String("api.circuit.from", from),
		attribute.String("api.circuit.to", to),
	))
}

func (m *metricsImpl) RecordThrottle(ctx context.Context, service string, wait time.Duration) {
	m.throttled.Add(ctx, 1, metric.WithAttributes(
		attribute.String("api.service", service),
	))
}

func (m *metricsImpl) RecordCacheLookup(ctx context.Context, hit bool) {
	if hit {
		m.cacheHits.Add(ctx, 1)
	} else {
		m.cacheMisses.Add(ctx, 1)
	}
}

// NoopMetrics is a metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) RecordRequest(context.Context, OpMeta, time.Duration, error)  {}
func (NoopMetrics) RecordRetry(context.Context, OpMeta, int, time.Duration)      {}
func (NoopMetrics) RecordCircuitTransition(context.Context, string, string, string) {}
func (NoopMetrics) RecordThrottle(context.Context, string, time.Duration)        {}
func (NoopMetrics) RecordCacheLookup(context.Context, bool)                      {}

var _ Metrics = (*metricsImpl)(nil)
var _ Metrics = NoopMetrics{}
