package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter rate-limits keys across processes using Redis SET NX with a
// TTL. Used for manual trigger endpoints so a cluster of instances shares
// one cooldown.
type RedisLimiter struct {
	client   *redis.Client
	prefix   string
	interval time.Duration
}

// NewRedis creates a distributed limiter with the given key prefix and
// per-key cooldown.
func NewRedis(client *redis.Client, prefix string, interval time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client:   client,
		prefix:   prefix,
		interval: interval,
	}
}

// Allow reports whether the key's cooldown has elapsed, claiming it if so.
// Redis errors fail open: a broken limiter should not block refreshes.
func (l *RedisLimiter) Allow(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ok, err := l.client.SetNX(ctx, l.prefix+key, time.Now().Unix(), l.interval).Result()
	if err != nil {
		return true
	}
	return ok
}

var _ RateLimiter = (*RedisLimiter)(nil)
