// Package ratelimit implements a fixed-window request limiter backed by a
// shared counter (redis in production). The limiter fails open: when the
// counter is unreachable, requests pass.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter increments a windowed key and returns the new count.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type Limiter struct {
	counter Counter
	limit   int64
	window  time.Duration
}

func New(counter Counter, limit int64, window time.Duration) *Limiter {
	return &Limiter{counter: counter, limit: limit, window: window}
}

// Allow reports whether the caller identified by key may proceed. The error
// is informational; callers treating the limiter as advisory should pass on
// err != nil.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	windowStart := time.Now().Truncate(l.window).Unix()
	n, err := l.counter.Incr(ctx, fmt.Sprintf("rl:%s:%d", key, windowStart), l.window)
	if err != nil {
		return true, err
	}
	return n <= l.limit, nil
}

// RedisCounter implements Counter on a shared redis.
type RedisCounter struct {
	client *redis.Client
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

var _ Counter = (*RedisCounter)(nil)

func (c *RedisCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
