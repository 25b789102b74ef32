package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Result describes the outcome of a limiter check.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RedisLimiter is a fixed-window counter shared by every API instance.
type RedisLimiter struct {
	client redis.Cmdable
	prefix string
	limit  int
	window time.Duration
}

// NewRedisLimiter allows limit hits per key within window.
func NewRedisLimiter(client redis.Cmdable, prefix string, limit int, window time.Duration) *RedisLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

// Allow records one hit for key and reports whether it fits in the window.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	fullKey := l.prefix + key

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, fullKey)
		pipe.ExpireNX(ctx, fullKey, l.window)
		ttl = pipe.PTTL(ctx, fullKey)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("rate limit %s: %w", key, err)
	}

	count := int(incr.Val())
	retryAfter := ttl.Val()
	if retryAfter < 0 {
		retryAfter = l.window
	}
	if count > l.limit {
		return Result{Allowed: false, RetryAfter: retryAfter}, nil
	}
	return Result{Allowed: true, Remaining: l.limit - count}, nil
}
