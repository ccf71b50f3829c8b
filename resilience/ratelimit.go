package resilience

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/driftworks/apiward/apierr"
)

// LimiterConfig configures client-side admission control. The limiter
// stacks three gates: a concurrency semaphore, a token bucket, and a
// sliding request-count window. Gates with zero configuration are
// disabled, except concurrency which always applies.
type LimiterConfig struct {
	// MaxConcurrent is the number of requests allowed in flight at once.
	// Default: 10
	MaxConcurrent int

	// Rate is the sustained requests-per-second budget for the token
	// bucket. Zero disables the bucket.
	Rate float64

	// Burst is the bucket capacity. Default: max(1, ceil(Rate)).
	Burst int

	// WindowLimit is the number of requests allowed per WindowSpan.
	// Zero disables the sliding window.
	WindowLimit int

	// WindowSpan is the span of the sliding window.
	// Default: 1 hour
	WindowSpan time.Duration

	// AcquireTimeout bounds how long Acquire may block, in addition to
	// any deadline on the caller's context.
	// Default: 30 seconds
	AcquireTimeout time.Duration

	// OnThrottle is called when admission has to wait, with the expected
	// delay. Used for observability; must not block.
	OnThrottle func(wait time.Duration)

	// Now overrides the clock for tests. The token bucket keeps its own
	// clock; Now governs only the sliding window.
	Now func() time.Time
}

// Limiter gates outbound requests against local concurrency and quota
// budgets so the client throttles itself before the server has to.
type Limiter struct {
	config LimiterConfig

	sem    chan struct{}
	bucket *rate.Limiter

	mu     sync.Mutex
	window *slidingWindow

	throttled atomic.Int64
}

// NewLimiter creates a new limiter.
func NewLimiter(config LimiterConfig) *Limiter {
	// Apply defaults
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}
	if config.AcquireTimeout <= 0 {
		config.AcquireTimeout = 30 * time.Second
	}
	if config.WindowSpan <= 0 {
		config.WindowSpan = time.Hour
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	l := &Limiter{
		config: config,
		sem:    make(chan struct{}, config.MaxConcurrent),
	}
	if config.Rate > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = int(config.Rate)
			if burst < 1 {
				burst = 1
			}
		}
		l.bucket = rate.NewLimiter(rate.Limit(config.Rate), burst)
	}
	if config.WindowLimit > 0 {
		l.window = newSlidingWindow(config.WindowLimit, config.WindowSpan)
	}
	return l
}

// Permit represents a granted admission. Release must be called exactly
// once when the request finishes.
type Permit struct {
	l        *Limiter
	released atomic.Bool
}

// Release returns the concurrency slot. Safe to call more than once.
func (p *Permit) Release() {
	if p == nil || !p.released.CompareAndSwap(false, true) {
		return
	}
	<-p.l.sem
}

// Acquire blocks until a concurrency slot and quota headroom are both
// available, then returns a permit. It returns ErrAcquireTimeout when
// the configured wait elapses and the context error when the caller's
// context ends first.
func (l *Limiter) Acquire(ctx context.Context) (*Permit, error) {
	deadline := time.NewTimer(l.config.AcquireTimeout)
	defer deadline.Stop()

	// Concurrency gate first: quota tokens are only consumed by
	// requests that can actually go out.
	select {
	case l.sem <- struct{}{}:
	default:
		l.noteThrottle(0)
		select {
		case l.sem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, ErrAcquireTimeout
		}
	}

	if err := l.waitQuota(ctx, deadline.C); err != nil {
		<-l.sem
		return nil, err
	}

	return &Permit{l: l}, nil
}

// waitQuota clears the sliding window and token bucket in order. When
// the bucket wait is abandoned, the window slot taken earlier is given
// back so a failed admission does not burn quota.
func (l *Limiter) waitQuota(ctx context.Context, deadline <-chan time.Time) error {
	var windowAt time.Time
	windowHeld := false

	if l.window != nil {
		for {
			now := l.config.Now()
			l.mu.Lock()
			wait := l.window.reserve(now)
			l.mu.Unlock()
			if wait <= 0 {
				windowAt = now
				windowHeld = true
				break
			}
			l.noteThrottle(wait)
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-deadline:
				timer.Stop()
				return ErrAcquireTimeout
			}
		}
	}

	if l.bucket != nil {
		r := l.bucket.Reserve()
		if !r.OK() {
			l.releaseWindow(windowAt, windowHeld)
			return ErrRateLimited
		}
		if d := r.Delay(); d > 0 {
			l.noteThrottle(d)
			timer := time.NewTimer(d)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				r.Cancel()
				l.releaseWindow(windowAt, windowHeld)
				return ctx.Err()
			case <-deadline:
				timer.Stop()
				r.Cancel()
				l.releaseWindow(windowAt, windowHeld)
				return ErrAcquireTimeout
			}
		}
	}
	return nil
}

// releaseWindow undoes a window reservation after a failed admission.
func (l *Limiter) releaseWindow(at time.Time, held bool) {
	if !held || l.window == nil {
		return
	}
	l.mu.Lock()
	l.window.release(at)
	l.mu.Unlock()
}

// TryConsume reports whether n requests could be admitted right now
// without blocking on quota. When admission would have to wait, it
// returns the expected delay and false without consuming anything.
// Concurrency slots are not part of the check.
func (l *Limiter) TryConsume(n int) (time.Duration, bool) {
	now := l.config.Now()

	if l.window != nil {
		l.mu.Lock()
		wait := l.window.peek(now, n)
		l.mu.Unlock()
		if wait > 0 {
			return wait, false
		}
	}

	if l.bucket != nil {
		r := l.bucket.ReserveN(now, n)
		if !r.OK() {
			return 0, false
		}
		if d := r.DelayFrom(now); d > 0 {
			r.CancelAt(now)
			return d, false
		}
	}

	if l.window != nil {
		l.mu.Lock()
		for i := 0; i < n; i++ {
			l.window.consume(now)
		}
		l.mu.Unlock()
	}
	return 0, true
}

// ReconcileHeaders folds server-reported rate limit state into the local
// budgets. Reconciliation only ever tightens: if the server says fewer
// requests remain than the local bucket believes, the surplus tokens are
// burned; a larger server allowance never loosens local limits.
func (l *Limiter) ReconcileHeaders(info apierr.RateLimitInfo) {
	if info.Remaining < 0 {
		return
	}

	if l.bucket != nil {
		now := l.config.Now()
		local := l.bucket.TokensAt(now)
		if surplus := int(local) - info.Remaining; surplus > 0 {
			l.bucket.AllowN(now, surplus)
		}
	}

	if l.window != nil {
		l.mu.Lock()
		now := l.config.Now()
		if surplus := l.window.remaining(now) - info.Remaining; surplus > 0 {
			for i := 0; i < surplus; i++ {
				l.window.consume(now)
			}
		}
		l.mu.Unlock()
	}
}

func (l *Limiter) noteThrottle(wait time.Duration) {
	l.throttled.Add(1)
	if l.config.OnThrottle != nil {
		l.config.OnThrottle(wait)
	}
}

// Metrics returns current limiter statistics.
func (l *Limiter) Metrics() LimiterMetrics {
	m := LimiterMetrics{
		InFlight:      len(l.sem),
		MaxConcurrent: l.config.MaxConcurrent,
		Throttled:     l.throttled.Load(),
	}
	if l.bucket != nil {
		m.BucketTokens = l.bucket.TokensAt(l.config.Now())
	}
	m.WindowRemaining = -1
	if l.window != nil {
		l.mu.Lock()
		m.WindowRemaining = l.window.remaining(l.config.Now())
		l.mu.Unlock()
	}
	return m
}

// LimiterMetrics contains limiter statistics.
type LimiterMetrics struct {
	InFlight        int
	MaxConcurrent   int
	BucketTokens    float64
	// WindowRemaining is -1 when no sliding window is configured.
	WindowRemaining int
	Throttled       int64
}

// slidingWindow counts requests in fixed sub-buckets over a rolling
// span. Not safe for concurrent use; the Limiter serializes access.
type slidingWindow struct {
	limit      int
	span       time.Duration
	bucketSize time.Duration
	buckets    map[int64]int
	total      int
}

func newSlidingWindow(limit int, span time.Duration) *slidingWindow {
	// 60 sub-buckets keeps eviction granularity proportional to span.
	bucketSize := span / 60
	if bucketSize < time.Millisecond {
		bucketSize = time.Millisecond
	}
	return &slidingWindow{
		limit:      limit,
		span:       span,
		bucketSize: bucketSize,
		buckets:    make(map[int64]int),
	}
}

// reserve consumes a slot if one is free, or returns how long until the
// oldest counted request ages out.
func (w *slidingWindow) reserve(now time.Time) time.Duration {
	if wait := w.peek(now, 1); wait > 0 {
		return wait
	}
	w.consume(now)
	return 0
}

// peek returns 0 when n slots are free at now, otherwise the wait until
// the next slot frees up.
func (w *slidingWindow) peek(now time.Time, n int) time.Duration {
	w.evict(now)
	if w.total+n <= w.limit {
		return 0
	}

	var oldest int64 = -1
	for k := range w.buckets {
		if oldest < 0 || k < oldest {
			oldest = k
		}
	}
	if oldest < 0 {
		// Window empty yet still over limit: n exceeds the limit
		// outright, so the wait is unbounded. Report one full span.
		return w.span
	}
	freeAt := time.Unix(0, (oldest+1)*int64(w.bucketSize)).Add(w.span)
	wait := freeAt.Sub(now)
	if wait <= 0 {
		wait = w.bucketSize
	}
	return wait
}

func (w *slidingWindow) consume(now time.Time) {
	k := now.UnixNano() / int64(w.bucketSize)
	w.buckets[k]++
	w.total++
}

// release gives back a slot consumed at the given instant. A no-op when
// the slot's sub-bucket has already aged out of the window.
func (w *slidingWindow) release(at time.Time) {
	k := at.UnixNano() / int64(w.bucketSize)
	n, ok := w.buckets[k]
	if !ok {
		return
	}
	if n <= 1 {
		delete(w.buckets, k)
	} else {
		w.buckets[k] = n - 1
	}
	w.total--
}

func (w *slidingWindow) remaining(now time.Time) int {
	w.evict(now)
	return w.limit - w.total
}

func (w *slidingWindow) evict(now time.Time) {
	cutoff := now.Add(-w.span).UnixNano()
	for k, n := range w.buckets {
		if (k+1)*int64(w.bucketSize) <= cutoff {
			w.total -= n
			delete(w.buckets, k)
		}
	}
}
