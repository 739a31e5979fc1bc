package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alwaysRetry(err error, attempt int) (time.Duration, bool) { return 0, true }

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, alwaysRetry, func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, alwaysRetry, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustionWrapsLastError(t *testing.T) {
	boom := errors.New("still down")
	calls := 0
	err := Do(context.Background(), 3, alwaysRetry, func() error {
		calls++
		return boom
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var exhausted *ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 3, exhausted.Attempts)
	assert.True(t, errors.Is(err, boom))
}

func TestDoFatalErrorPropagatesImmediately(t *testing.T) {
	fatal := errors.New("constraint violation")
	calls := 0
	err := Do(context.Background(), 5, func(err error, attempt int) (time.Duration, bool) {
		return 0, false
	}, func() error {
		calls++
		return fatal
	})
	assert.Equal(t, fatal, err)
	assert.Equal(t, 1, calls)
}

func TestDoHonoursContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, 3, func(err error, attempt int) (time.Duration, bool) {
		return time.Minute, true
	}, func() error {
		return errors.New("transient")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStorageClassifier(t *testing.T) {
	classify := Storage(100 * time.Millisecond)

	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"connection refused", errors.New("dial tcp 127.0.0.1:5432: connection refused"), true},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"terminated", errors.New("pq: terminating connection due to administrator command: connection terminated"), true},
		{"unreachable", errors.New("network is unreachable"), true},
		{"unique violation", errors.New(`pq: duplicate key value violates unique constraint "products_slug_key"`), false},
		{"bad sql", errors.New("pq: syntax error at or near SELECT"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, retryable := classify(tt.err, 0)
			assert.Equal(t, tt.retryable, retryable)
		})
	}
}

func TestStorageBackoffIsExponential(t *testing.T) {
	classify := Storage(100 * time.Millisecond)
	err := errors.New("connection refused")

	d0, _ := classify(err, 0)
	d1, _ := classify(err, 1)
	d2, _ := classify(err, 2)
	assert.Equal(t, 100*time.Millisecond, d0)
	assert.Equal(t, 200*time.Millisecond, d1)
	assert.Equal(t, 400*time.Millisecond, d2)
}
