// Package health provides health checks for the client's resilience
// components. Checkers report circuit breaker state, rate limiter
// saturation, and token cache freshness; the Aggregator runs a set of
// checkers and reduces their results to a single status.
//
//	agg := health.NewAggregator(health.AggregatorConfig{})
//	agg.Register(health.NewCircuitChecker("drive-circuit", breaker))
//	agg.Register(health.NewLimiterChecker("drive-limiter", limiter))
//	agg.Register(health.NewTokenChecker("drive-token", cache, key))
//
//	results, err := agg.CheckAll(ctx)
//	status := health.OverallStatus(results)
package health
