package vacation

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// CACHED ROSTER - Bounded-TTL cache over a ManagerRoster source
// =============================================================================

// CachedRoster wraps a ManagerRoster and caches its list for a bounded TTL.
// The manager list changes rarely; callers tolerate staleness up to the
// TTL. When a refresh fails, a previously cached list keeps serving.
type CachedRoster struct {
	Source ManagerRoster
	TTL    time.Duration

	mu        sync.Mutex
	cached    []string
	fetchedAt time.Time

	now func() time.Time
}

// NewCachedRoster caches src lookups for ttl.
func NewCachedRoster(src ManagerRoster, ttl time.Duration) *CachedRoster {
	return &CachedRoster{Source: src, TTL: ttl, now: time.Now}
}

// List returns the cached manager emails, refreshing from the source when
// the cache is older than the TTL.
func (c *CachedRoster) List(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != nil && c.now().Sub(c.fetchedAt) < c.TTL {
		return append([]string(nil), c.cached...), nil
	}

	fresh, err := c.Source.List(ctx)
	if err != nil {
		if c.cached != nil {
			// Serve stale rather than failing notification dispatch.
			return append([]string(nil), c.cached...), nil
		}
		return nil, err
	}

	c.cached = append([]string(nil), fresh...)
	c.fetchedAt = c.now()
	return append([]string(nil), c.cached...), nil
}

// Refresh forces a reload on the next List call.
func (c *CachedRoster) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchedAt = time.Time{}
}

// Contains reports whether email is on the roster, matched after trimming
// and lowercasing.
func (c *CachedRoster) Contains(ctx context.Context, email string) (bool, error) {
	list, err := c.List(ctx)
	if err != nil {
		return false, err
	}
	key := normalizeKey(email)
	for _, m := range list {
		if normalizeKey(m) == key {
			return true, nil
		}
	}
	return false, nil
}
