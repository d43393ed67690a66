package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"madrasa/internal/httpmiddleware"
)

// Limiter throttles login attempts per key (the normalised email).
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter counts attempts in a fixed one minute window shared by every
// API instance.
type RedisLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

// NewRedisLimiter allows perMinute attempts per key.
func NewRedisLimiter(client *redis.Client, perMinute int) *RedisLimiter {
	return &RedisLimiter{client: client, limit: int64(perMinute), window: time.Minute}
}

// Allow increments the key's counter and compares it with the limit.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	k := "madrasa:login:" + key
	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return false, err
		}
	}
	return n <= l.limit, nil
}

// MemoryLimiter is the single-process limiter.
type MemoryLimiter struct {
	bucket *httpmiddleware.SimpleTokenBucket
}

// NewMemoryLimiter allows perMinute attempts per key.
func NewMemoryLimiter(perMinute int) *MemoryLimiter {
	return &MemoryLimiter{bucket: httpmiddleware.NewSimpleTokenBucket(perMinute, perMinute)}
}

// Allow never fails.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	return l.bucket.Allow(key), nil
}
