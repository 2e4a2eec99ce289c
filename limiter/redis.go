/*
Package limiter provides a Redis-backed rolling-window rate limiter.

PURPOSE:
  Implements vacation.RateLimiter across multiple server instances. Each
  key holds a sorted set of hit timestamps; a hit is allowed when the
  count inside the window is under the limit.

DEGRADATION:
  The engine degrades open on limiter errors, so an unreachable Redis
  slows nothing down. For single-instance deployments the in-process
  vacation.WindowLimiter avoids the dependency entirely.

SEE ALSO:
  - vacation/ratelimit.go: in-process equivalent
*/
package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis counts hits per key in a rolling window using a sorted set.
type Redis struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedis builds a limiter allowing limit hits per key per window.
func NewRedis(client *redis.Client, limit int, window time.Duration) *Redis {
	return &Redis{client: client, limit: limit, window: window, now: time.Now}
}

// Allow records a hit for key and reports whether it is within the limit.
func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	now := r.now()
	redisKey := "ratelimit:" + key
	cutoff := now.Add(-r.window).UnixNano()

	pipe := r.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", cutoff))
	countCmd := pipe.ZCard(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	if countCmd.Val() >= int64(r.limit) {
		return false, nil
	}

	pipe = r.client.Pipeline()
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})
	pipe.Expire(ctx, redisKey, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit record failed: %w", err)
	}
	return true, nil
}

// Window returns the configured window.
func (r *Redis) Window() time.Duration { return r.window }
