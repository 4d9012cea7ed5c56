package reviewapp

import (
	"context"
	"errors"
	"time"

	"github.com/reviewfolio/backend/internal/domain/review"
	"github.com/reviewfolio/backend/internal/domain/shared"
)

// maxAttempts is one call plus one immediate retry
const maxAttempts = 2

// callWithRetry runs call with a fresh timeout per attempt and retries once
// unless the error is permanent or ctx itself is done.
func callWithRetry[T any](ctx context.Context, timeout time.Duration, call func(context.Context) (T, error)) (T, error) {
	var (
		result T
		err    error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err = attemptCall(ctx, timeout, call)
		if err == nil || !retryable(err) || ctx.Err() != nil {
			return result, err
		}
	}
	return result, err
}

func attemptCall[T any](ctx context.Context, timeout time.Duration, call func(context.Context) (T, error)) (T, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return call(cctx)
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, review.ErrConflict),
		errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}
