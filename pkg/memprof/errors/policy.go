package errors

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy configures retry behavior for report delivery.
type Policy struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	MaxAttempts int

	// InitialBackoff is the starting backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffFactor is the multiplier applied to backoff after each attempt.
	BackoffFactor float64

	// Jitter is the random jitter factor (0.0-1.0).
	Jitter float64

	// RetryableFunc optionally overrides the default retryability check.
	RetryableFunc func(error) bool
}

// DefaultPolicy is the standard delivery retry policy.
var DefaultPolicy = Policy{
	MaxAttempts:    3,
	InitialBackoff: 100 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
	BackoffFactor:  2.0,
	Jitter:         0.1,
}

// AggressivePolicy retries more times with shorter backoff.
var AggressivePolicy = Policy{
	MaxAttempts:    5,
	InitialBackoff: 50 * time.Millisecond,
	MaxBackoff:     2 * time.Second,
	BackoffFactor:  1.5,
	Jitter:         0.2,
}

// NoRetry disables retries.
var NoRetry = Policy{
	MaxAttempts: 1,
}

// schedule builds the backoff schedule for one delivery.
func (p Policy) schedule() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialBackoff > 0 {
		b.InitialInterval = p.InitialBackoff
	}
	if p.MaxBackoff > 0 {
		b.MaxInterval = p.MaxBackoff
	}
	if p.BackoffFactor > 0 {
		b.Multiplier = p.BackoffFactor
	}
	b.RandomizationFactor = p.Jitter
	return b
}

func (p Policy) retryable(err error) bool {
	if p.RetryableFunc != nil {
		return p.RetryableFunc(err)
	}
	return IsRetryable(err)
}

// Result contains the outcome of a retried operation.
type Result[T any] struct {
	// Value is the result if successful.
	Value T

	// Err is the final error if all attempts failed.
	Err error

	// Attempts is the number of attempts made.
	Attempts int

	// Duration is the total time spent retrying.
	Duration time.Duration
}

// Retry executes a function with retries based on the policy.
func Retry[T any](p Policy, fn func() (T, error)) Result[T] {
	return RetryContext(context.Background(), p, func(_ context.Context) (T, error) {
		return fn()
	})
}

// RetryContext executes a function with retries, honoring context
// cancellation between attempts. Non-retryable errors stop the loop
// immediately.
func RetryContext[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) Result[T] {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}

	sched := p.schedule()
	start := time.Now()

	var result Result[T]
	for attempt := 1; ; attempt++ {
		result.Attempts = attempt

		value, err := fn(ctx)
		if err == nil {
			result.Value = value
			result.Err = nil
			result.Duration = time.Since(start)
			return result
		}
		result.Err = err

		if attempt >= p.MaxAttempts || !p.retryable(err) {
			result.Duration = time.Since(start)
			return result
		}

		sleep := sched.NextBackOff()
		if sleep == backoff.Stop {
			sleep = p.MaxBackoff
		}
		select {
		case <-ctx.Done():
			result.Err = ctx.Err()
			result.Duration = time.Since(start)
			return result
		case <-time.After(sleep):
		}
	}
}
