package service

import (
	"context"
	"time"
)

// Cache is the slice of the Redis client the services depend on.
// *util.RedisClient satisfies it. A nil Cache disables caching, dedupe and
// counter allocation; every caller carries a store-backed fallback, so
// correctness never depends on the cache being up.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
}
