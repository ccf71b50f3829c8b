// Package observe provides telemetry for outbound API calls: tracing,
// metrics, and structured logging built on OpenTelemetry.
//
// The Observer owns provider lifecycle; the Middleware wraps individual
// calls and exposes hook adapters that plug into the resilience layers'
// callbacks, so breaker transitions, retries, throttling, and token
// cache behavior all land in the same telemetry pipeline.
//
// Log fields whose keys suggest credential material are redacted before
// serialization; see RedactedFields.
//
//	obs, err := observe.NewObserver(ctx, observe.Config{
//	    ServiceName: "drive-sync",
//	    Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
//	    Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
//	})
//	mw, err := observe.NewMiddlewareFromObserver(obs)
//
//	err = mw.Call(ctx, observe.OpMeta{Service: "drive", Operation: "files.list"},
//	    func(ctx context.Context) error {
//	        _, err := orch.Execute(ctx, req)
//	        return err
//	    })
package observe
