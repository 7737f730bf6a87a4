// Package retry provides the bounded retry loop used around LLM calls
// whose replies must parse into a known shape. Errors are terminal
// unless explicitly marked retryable, so malformed-output retries never
// mask configuration or validation failures.
package retry

import (
	"context"
	"errors"
	"time"
)

// Defaults applied when a Policy field is zero.
const (
	DefaultAttempts = 2
	DefaultWait     = time.Second
)

// Policy bounds the loop. Zero values fall back to the defaults.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int

	// Wait is the fixed pause between tries.
	Wait time.Duration
}

type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable marks err as worth another attempt. A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// IsRetryable reports whether err carries the retryable mark.
func IsRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// Do runs fn until it succeeds, returns a terminal error, or the policy
// is exhausted. The last error is returned after exhaustion. The wait
// between tries is interruptible by ctx.
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	wait := p.Wait
	if wait <= 0 {
		wait = DefaultWait
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}
	}

	return zero, lastErr
}
