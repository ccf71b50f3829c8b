// Package resilience provides the failure-handling layers wrapped around
// outbound API calls: circuit breaking, client-side rate limiting,
// classified-error-aware retries, and the orchestrator that composes
// them.
//
// # Layers
//
//   - CircuitBreaker: stops calling an unhealthy upstream after repeated
//     retryable failures, probing recovery through a half-open state.
//
//   - Limiter: gates admission against a concurrency cap, a token
//     bucket, and a sliding request window, and tightens those budgets
//     from server rate-limit headers.
//
//   - Executor: retries retryable classified errors with exponential
//     backoff, jitter, server retry-after hints, and per-error-code
//     attempt overrides.
//
//   - Orchestrator: runs a request through the layers in order, feeding
//     classified outcomes back into the breaker.
//
// # Usage
//
//	orch := resilience.NewOrchestrator(resilience.OrchestratorConfig{
//	    Breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitConfig()),
//	    Limiter: resilience.NewLimiter(resilience.LimiterConfig{Rate: 10}),
//	    Tokens:  tokens,
//	    Retry:   resilience.NewExecutor(resilience.Policy{}),
//	})
//
//	resp, err := orch.Execute(ctx, resilience.Request{
//	    Service:   "drive",
//	    Operation: "files.list",
//	    Key:       key,
//	    Scopes:    []string{"drive.readonly"},
//	    Do:        doHTTP,
//	})
package resilience
