package square

import (
	"context"
	"sync"
	"time"
)

// Limiter serialises outbound Square API calls with a minimum spacing between
// them. Callers are admitted in arrival order; none is skipped over, so a
// burst of concurrent item tasks drains first-in-first-out. There is no upper
// bound on the queue — callers pace themselves.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

// DefaultInterval is the minimum spacing between Square calls.
const DefaultInterval = 250 * time.Millisecond

// NewLimiter creates a limiter with the given minimum spacing. An interval of
// zero or less disables throttling, which tests rely on.
func NewLimiter(interval time.Duration) *Limiter {
	return &Limiter{interval: interval}
}

// Throttle blocks until the caller may issue one API call. A caller arriving
// before the spacing interval has elapsed is delayed by the remainder.
func (l *Limiter) Throttle(ctx context.Context) error {
	if l == nil || l.interval <= 0 {
		return ctx.Err()
	}

	l.mu.Lock()
	now := time.Now()
	at := l.next
	if at.Before(now) {
		at = now
	}
	l.next = at.Add(l.interval)
	l.mu.Unlock()

	wait := time.Until(at)
	if wait <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset clears the spacing state so the next caller proceeds immediately.
// Intended for test isolation.
func (l *Limiter) Reset() {
	l.mu.Lock()
	l.next = time.Time{}
	l.mu.Unlock()
}
