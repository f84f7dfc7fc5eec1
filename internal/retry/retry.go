// Package retry provides a bounded retry combinator for upstream calls.
package retry

import (
	"context"
	"errors"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// ErrInvalidMaxAttempts is returned when a policy allows no attempt at all.
var ErrInvalidMaxAttempts = errors.New("retry: max attempts must be greater than 0")

// Policy bounds how an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of calls, first one included.
	MaxAttempts int
	// Delay is waited between attempts. Zero re-invokes immediately.
	Delay time.Duration
	// Retryable decides whether an error is worth another attempt.
	// Nil retries every error.
	Retryable func(error) bool
	// OnRetry is called after a failed attempt that will be retried.
	OnRetry func(attempt int, err error)
}

func (p Policy) backoff() goretry.Backoff {
	delay := p.Delay
	b := goretry.BackoffFunc(func() (time.Duration, bool) { return delay, false })
	return goretry.WithMaxRetries(uint64(p.MaxAttempts-1), b)
}

// Do calls op until it succeeds, returns a non-retryable error, the context
// ends, or MaxAttempts is reached. The last error is returned unchanged.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if p.MaxAttempts <= 0 {
		return zero, ErrInvalidMaxAttempts
	}

	var out T
	attempt := 0
	err := goretry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		attempt++

		v, err := op(ctx)
		if err == nil {
			out = v
			return nil
		}
		if attempt == p.MaxAttempts || (p.Retryable != nil && !p.Retryable(err)) {
			return err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		return goretry.RetryableError(err)
	})
	if err != nil {
		return zero, err
	}
	return out, nil
}
