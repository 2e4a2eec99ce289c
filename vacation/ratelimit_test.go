package vacation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Clock-driven tests, internal so the time source can be pinned.

func TestWindowLimiter_BudgetPerKey(t *testing.T) {
	// GIVEN: A budget of 2 calls per minute
	// WHEN: One key exhausts its budget
	// THEN: Only that key is throttled
	l := NewWindowLimiter(2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "create:alice")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, "create:alice")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Allow(ctx, "create:bob")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWindowLimiter_WindowSlides(t *testing.T) {
	// GIVEN: An exhausted budget
	// WHEN: The clock moves past the window
	// THEN: The budget is restored
	clock := time.Date(2025, time.February, 10, 9, 0, 0, 0, time.UTC)
	l := NewWindowLimiter(1, time.Minute)
	l.now = func() time.Time { return clock }
	ctx := context.Background()

	ok, _ := l.Allow(ctx, "k")
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "k")
	assert.False(t, ok)

	clock = clock.Add(61 * time.Second)
	ok, _ = l.Allow(ctx, "k")
	assert.True(t, ok)
}

func TestWindowLimiter_RejectionDoesNotConsumeBudget(t *testing.T) {
	// GIVEN: A throttled key hammering the limiter
	// WHEN: The window passes
	// THEN: It recovers; rejected calls were not recorded as hits
	clock := time.Date(2025, time.February, 10, 9, 0, 0, 0, time.UTC)
	l := NewWindowLimiter(1, time.Minute)
	l.now = func() time.Time { return clock }
	ctx := context.Background()

	l.Allow(ctx, "k")
	for i := 0; i < 5; i++ {
		clock = clock.Add(10 * time.Second)
		ok, _ := l.Allow(ctx, "k")
		assert.False(t, ok)
	}

	clock = clock.Add(time.Minute)
	ok, _ := l.Allow(ctx, "k")
	assert.True(t, ok)
}

// -----------------------------------------------------------------------------
// Cached roster
// -----------------------------------------------------------------------------

type countingRoster struct {
	calls int
	list  []string
	err   error
}

func (r *countingRoster) List(_ context.Context) ([]string, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.list, nil
}

func TestCachedRoster_ServesFromCacheWithinTTL(t *testing.T) {
	src := &countingRoster{list: []string{"boss@example.com"}}
	c := NewCachedRoster(src, time.Minute)

	for i := 0; i < 3; i++ {
		got, err := c.List(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"boss@example.com"}, got)
	}
	assert.Equal(t, 1, src.calls)
}

func TestCachedRoster_RefreshesAfterTTL(t *testing.T) {
	clock := time.Date(2025, time.February, 10, 9, 0, 0, 0, time.UTC)
	src := &countingRoster{list: []string{"boss@example.com"}}
	c := NewCachedRoster(src, time.Minute)
	c.now = func() time.Time { return clock }

	c.List(context.Background())
	clock = clock.Add(2 * time.Minute)
	c.List(context.Background())
	assert.Equal(t, 2, src.calls)
}

func TestCachedRoster_ServesStaleOnSourceError(t *testing.T) {
	// GIVEN: A warm cache and a source that starts failing
	// WHEN: The TTL expires
	// THEN: The stale list keeps serving instead of failing dispatch
	clock := time.Date(2025, time.February, 10, 9, 0, 0, 0, time.UTC)
	src := &countingRoster{list: []string{"boss@example.com"}}
	c := NewCachedRoster(src, time.Minute)
	c.now = func() time.Time { return clock }

	_, err := c.List(context.Background())
	require.NoError(t, err)

	src.err = errors.New("db down")
	clock = clock.Add(2 * time.Minute)
	got, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"boss@example.com"}, got)
}

func TestCachedRoster_ColdCacheErrorPropagates(t *testing.T) {
	src := &countingRoster{err: errors.New("db down")}
	c := NewCachedRoster(src, time.Minute)

	_, err := c.List(context.Background())
	assert.Error(t, err)
}

func TestCachedRoster_Contains(t *testing.T) {
	src := &countingRoster{list: []string{"Boss@Example.com"}}
	c := NewCachedRoster(src, time.Minute)

	ok, err := c.Contains(context.Background(), "  boss@example.com ")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Contains(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.False(t, ok)
}
