package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// transientError wraps failures worth retrying (timeouts, 429, 5xx).
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// markTransient tags an error as retryable.
func markTransient(err error) error {
	return &transientError{err: err}
}

// IsTransient reports whether an error was tagged retryable.
func IsTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}

// withRetry runs fn up to maxAttempts times, doubling the backoff between
// attempts. Non-transient errors and context cancellation stop immediately.
func withRetry(ctx context.Context, logger *slog.Logger, maxAttempts int, initialBackoff time.Duration, op string, fn func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	backoff := initialBackoff
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !IsTransient(err) || attempt == maxAttempts {
			return err
		}
		logger.Warn("retrying provider call",
			"op", op, "attempt", attempt, "backoff", backoff, "error", err.Error())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}
