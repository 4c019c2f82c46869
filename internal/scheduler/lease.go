package scheduler

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lease is an advisory mutual exclusion for sweep runs across instances.
// Holders are best-effort; money safety comes from row locks, the lease only
// avoids wasted duplicate passes.
type Lease interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Free(ctx context.Context, name string) error
}

// RedisLease implements Lease with SET NX on a shared redis.
type RedisLease struct {
	client *redis.Client
}

func NewRedisLease(client *redis.Client) *RedisLease {
	return &RedisLease{client: client}
}

var _ Lease = (*RedisLease)(nil)

func (l *RedisLease) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, "lease:"+name, 1, ttl).Result()
}

func (l *RedisLease) Free(ctx context.Context, name string) error {
	return l.client.Del(ctx, "lease:"+name).Err()
}
