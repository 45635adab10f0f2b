package ratelimit

import (
	"context"
	"errors"
	"time"

	"certus/internal/domain"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces limiter counters when the redis database is shared
// with the object store mirror.
const keyPrefix = "ratelimit:"

type redisLimiter struct {
	client redis.UniversalClient
	now    func() time.Time
}

var redisAllowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

// NewRedisLimiter wraps an existing redis client in a fixed-window limiter.
// The client is shared with whatever else the process does against redis.
func NewRedisLimiter(client redis.UniversalClient, now func() time.Time) (domain.RateLimiter, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if now == nil {
		now = time.Now
	}
	return &redisLimiter{client: client, now: now}, nil
}

func (r *redisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	windowMillis := window.Milliseconds()
	if windowMillis <= 0 {
		windowMillis = 1000
	}
	current, ttlMillis, err := r.bump(ctx, keyPrefix+key, windowMillis)
	if err != nil {
		return domain.RateLimitDecision{}, err
	}

	resetAt := r.now()
	if ttlMillis > 0 {
		resetAt = resetAt.Add(time.Duration(ttlMillis) * time.Millisecond)
	}
	remaining := limit - int(current)
	if remaining < 0 {
		remaining = 0
	}
	return domain.RateLimitDecision{
		Allowed:   current <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// bump increments the window counter and returns the count plus the window's
// remaining ttl in milliseconds.
func (r *redisLimiter) bump(ctx context.Context, key string, windowMillis int64) (int64, int64, error) {
	result, err := redisAllowScript.Run(ctx, r.client, []string{key}, windowMillis).Result()
	if err != nil {
		return 0, 0, err
	}
	values, ok := result.([]any)
	if !ok || len(values) < 2 {
		return 0, 0, errors.New("unexpected rate limit script response")
	}
	current, ok := values[0].(int64)
	if !ok {
		return 0, 0, errors.New("invalid rate limit counter response")
	}
	ttlMillis, _ := values[1].(int64)
	return current, ttlMillis, nil
}
