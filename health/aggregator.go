package health

import (
	"context"
	"sync"
	"time"
)

// AggregatorConfig configures a health check aggregator.
type AggregatorConfig struct {
	// Timeout is the maximum duration for a single check.
	// Default: 10 seconds.
	Timeout time.Duration

	// Sequential runs checks one at a time instead of concurrently.
	// Checks run in parallel by default.
	Sequential bool
}

// Aggregator runs registered health checks and combines their results.
type Aggregator struct {
	config   AggregatorConfig
	mu       sync.RWMutex
	checkers map[string]Checker
}

// NewAggregator creates a health check aggregator.
func NewAggregator(config AggregatorConfig) *Aggregator {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &Aggregator{
		config:   config,
		checkers: make(map[string]Checker),
	}
}

// Register adds a checker. A checker with the same name is replaced.
func (a *Aggregator) Register(c Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checkers[c.Name()] = c
}

// Unregister removes a checker by name.
func (a *Aggregator) Unregister(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.checkers, name)
}

// CheckerNames returns the names of all registered checkers.
func (a *Aggregator) CheckerNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.checkers))
	for name := range a.checkers {
		names = append(names, name)
	}
	return names
}

// Check runs a single checker by name.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	c, ok := a.checkers[name]
	a.mu.RUnlock()
	if !ok {
		return Result{}, ErrCheckerNotFound
	}
	return a.runCheck(ctx, c), nil
}

// CheckAll runs every registered checker and returns results keyed by name.
func (a *Aggregator) CheckAll(ctx context.Context) (map[string]Result, error) {
	a.mu.RLock()
	checkers := make(map[string]Checker, len(a.checkers))
	for name, c := range a.checkers {
		checkers[name] = c
	}
	a.mu.RUnlock()

	if len(checkers) == 0 {
		return nil, ErrNoCheckers
	}

	results := make(map[string]Result, len(checkers))

	if a.config.Sequential {
		for name, c := range checkers {
			results[name] = a.runCheck(ctx, c)
		}
		return results, nil
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, c := range checkers {
		wg.Add(1)
		go func(name string, c Checker) {
			defer wg.Done()
			result := a.runCheck(ctx, c)
			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, c)
	}
	wg.Wait()

	return results, nil
}

// OverallStatus reduces a result set to a single status: any unhealthy
// check makes the whole set unhealthy, otherwise any degraded check
// makes it degraded.
func OverallStatus(results map[string]Result) Status {
	overall := StatusHealthy
	for _, r := range results {
		switch r.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			overall = StatusDegraded
		}
	}
	return overall
}

// runCheck executes a checker with the configured timeout.
func (a *Aggregator) runCheck(ctx context.Context, c Checker) Result {
	checkCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	start := time.Now()
	resultCh := make(chan Result, 1)

	go func() {
		resultCh <- c.Check(checkCtx)
	}()

	select {
	case result := <-resultCh:
		result.Duration = time.Since(start)
		if result.Timestamp.IsZero() {
			result.Timestamp = time.Now()
		}
		return result
	case <-checkCtx.Done():
		return Result{
			Status:    StatusUnhealthy,
			Message:   "check timed out",
			Error:     ErrCheckTimeout,
			Duration:  time.Since(start),
			Timestamp: time.Now(),
		}
	}
}

// Checker returns a Checker view of the aggregator, so a set of checks
// can itself be registered as a single check elsewhere.
func (a *Aggregator) Checker(name string) Checker {
	return NewCheckerFunc(name, func(ctx context.Context) Result {
		results, err := a.CheckAll(ctx)
		if err != nil {
			return Unhealthy("no checks registered", err)
		}

		details := make(map[string]any, len(results))
		for n, r := range results {
			details[n] = r.Status.String()
		}

		switch OverallStatus(results) {
		case StatusUnhealthy:
			return Unhealthy("one or more checks unhealthy", nil).WithDetails(details)
		case StatusDegraded:
			return Degraded("one or more checks degraded").WithDetails(details)
		default:
			return Healthy("all checks passing").WithDetails(details)
		}
	})
}
