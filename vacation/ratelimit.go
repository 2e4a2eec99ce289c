package vacation

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// WINDOW LIMITER - In-memory sliding-window rate limiter
// =============================================================================

// WindowLimiter counts calls per key inside a rolling window. It is
// independent of the engine lock and checked before the lock is requested.
// For multi-instance deployments the Redis-backed limiter in limiter/
// replaces this one.
type WindowLimiter struct {
	limit  int
	window time.Duration

	mu   sync.Mutex
	hits map[string][]time.Time

	now func() time.Time
}

// NewWindowLimiter allows at most limit calls per key within window.
func NewWindowLimiter(limit int, window time.Duration) *WindowLimiter {
	return &WindowLimiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow records a call for key and reports whether it fits in the window.
func (l *WindowLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	kept := l.hits[key][:0]
	for _, t := range l.hits[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.limit {
		l.hits[key] = kept
		return false, nil
	}
	l.hits[key] = append(kept, now)
	return true, nil
}

// Window returns the configured rolling window, used to tell throttled
// callers when to retry.
func (l *WindowLimiter) Window() time.Duration { return l.window }
