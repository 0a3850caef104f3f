package resilience

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when fn outlives its deadline.
var ErrTimeout = errors.New("operation timed out")

// WithTimeout runs fn under a deadline derived from ctx and returns as soon
// as either finishes. On deadline it returns ErrTimeout without waiting for
// fn, which sees its context cancelled. Cancellation of ctx itself is
// returned as ctx's error. A non-positive timeout calls fn directly.
func WithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeoutCause(ctx, timeout, ErrTimeout)
	defer cancel()

	result := make(chan error, 1)
	go func() { result <- fn(ctx) }()

	select {
	case err := <-result:
		if err != nil && ctx.Err() != nil {
			return context.Cause(ctx)
		}
		return err
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}
