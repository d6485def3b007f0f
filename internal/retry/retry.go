// Package retry provides a small reusable retry policy for calls to remote
// services.
//
// Callers signal that a failure is worth another attempt by returning a
// *RetryableError, optionally carrying a server-supplied delay hint (e.g.
// from a Retry-After header). Any other error is terminal and returned
// immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// RetryableError wraps an error that may succeed on a later attempt.
type RetryableError struct {
	Err error
	// After is a server-supplied hint for how long to wait before the next
	// attempt. Zero means use the policy's backoff.
	After time.Duration
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Retryable wraps err to request another attempt with the policy's backoff.
func Retryable(err error) error {
	return &RetryableError{Err: err}
}

// RetryableAfter wraps err to request another attempt after the given delay.
func RetryableAfter(err error, after time.Duration) error {
	return &RetryableError{Err: err, After: after}
}

// IsRetryable reports whether err (or anything it wraps) is a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Policy configures the retry behavior.
type Policy struct {
	// MaxRetries is the number of retries after the initial attempt, so the
	// total attempt count is MaxRetries + 1.
	MaxRetries int

	// BaseDelay is the first backoff delay. Subsequent delays double
	// (base << (attempt-1)) up to MaxDelay.
	BaseDelay time.Duration

	// MaxDelay caps the backoff. Zero means no cap.
	MaxDelay time.Duration

	Logger *slog.Logger
}

// Validate checks the policy for usable values.
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries must be non-negative, got %d", p.MaxRetries)
	}
	if p.BaseDelay <= 0 {
		return fmt.Errorf("base delay must be positive, got %v", p.BaseDelay)
	}
	if p.MaxDelay != 0 && p.MaxDelay < p.BaseDelay {
		return fmt.Errorf("max delay %v is below base delay %v", p.MaxDelay, p.BaseDelay)
	}
	return nil
}

// Do runs fn until it succeeds, fails terminally, exhausts the retry budget,
// or the context is canceled. fn receives the 1-based attempt number so
// callers can refresh credentials between attempts.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context, attempt int) error) error {
	var lastErr error

	for attempt := 1; attempt <= p.MaxRetries+1; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}

		var re *RetryableError
		if !errors.As(err, &re) {
			return err
		}
		lastErr = re.Err

		if attempt > p.MaxRetries {
			break
		}

		delay := p.backoff(attempt, re.After)
		if p.Logger != nil {
			p.Logger.Info("Retrying after failure",
				"op", op,
				"attempt", attempt,
				"delay", delay,
				"error", re.Err,
			)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}

// backoff computes the wait before the next attempt, preferring the server
// hint when present.
func (p Policy) backoff(attempt int, hint time.Duration) time.Duration {
	if hint > 0 {
		return hint
	}
	delay := p.BaseDelay * time.Duration(1<<(attempt-1))
	if p.MaxDelay != 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}
