package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// DefaultMaxAttempts bounds every retry loop unless the caller overrides it.
const DefaultMaxAttempts = 3

// Operation is the unit of work being retried.
type Operation func() error

// Classifier inspects a failed attempt and reports whether it may be retried
// and how long to wait before the next one. attempt is zero-based.
type Classifier func(err error, attempt int) (time.Duration, bool)

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Do runs op up to maxAttempts times. Errors the classifier rejects propagate
// immediately; retryable errors are retried after the classifier's delay.
// Exhaustion wraps the last error in an *ExhaustedError.
func Do(ctx context.Context, maxAttempts int, classify Classifier, op Operation) error {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		delay, retryable := classify(lastErr, attempt)
		if !retryable {
			return lastErr
		}
		if attempt == maxAttempts-1 {
			break
		}
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return &ExhaustedError{Attempts: maxAttempts, Last: lastErr}
}

// Storage classifies local-store connection failures as retryable with plain
// exponential backoff. Anything else (constraint violations, bad SQL, context
// cancellation) propagates immediately.
func Storage(baseDelay time.Duration) Classifier {
	return func(err error, attempt int) (time.Duration, bool) {
		if !retryableStorage(err) {
			return 0, false
		}
		return baseDelay * (1 << attempt), true
	}
}

var storageFailures = []string{
	"connection refused",
	"connection reset",
	"connection terminated",
	"unreachable",
	"broken pipe",
	"no such host",
	"connection timed out",
}

func retryableStorage(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range storageFailures {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
