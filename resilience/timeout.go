package resilience

import (
	"context"
	"errors"
	"time"
)

// WithAttemptTimeout runs op under a deadline. A deadline hit is
// reported as ErrTimeout so callers can tell an attempt budget from the
// parent context ending.
func WithAttemptTimeout(ctx context.Context, d time.Duration, op func(context.Context) error) error {
	if d <= 0 {
		return op(ctx)
	}

	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	err := op(tctx)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return ErrTimeout
	}
	return err
}
