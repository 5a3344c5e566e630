package resilience

import (
	"context"
	"fmt"
	"time"
)

// WithDeadline runs fn under a context that expires after limit. fn is
// expected to honor its context; the error it returns is annotated when
// the limit, rather than the parent context, cut it short. A non-positive
// limit runs fn with ctx unchanged.
func WithDeadline(ctx context.Context, limit time.Duration, name string, fn func(ctx context.Context) error) error {
	if limit <= 0 {
		return fn(ctx)
	}
	dctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()
	err := fn(dctx)
	if err != nil && ctx.Err() == nil && dctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%s: %w (limit: %v): %w", name, context.DeadlineExceeded, limit, err)
	}
	return err
}
