package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounterStore keeps request counters in Redis under
// "ratelimit:<keyId>:<bucket>". INCR gives the atomic
// increment-and-read the limiter requires; the EXPIRE only controls
// eviction of dead buckets.
type RedisCounterStore struct {
	redis *redis.Client
}

// NewRedisCounterStore creates a Redis-backed counter store.
func NewRedisCounterStore(redisClient *redis.Client) *RedisCounterStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisCounterStore{redis: redisClient}
}

func counterKey(keyID, bucket string) string {
	return fmt.Sprintf("ratelimit:%s:%s", keyID, bucket)
}

// Incr implements CounterStore.
func (s *RedisCounterStore) Incr(ctx context.Context, keyID, bucket string, retention time.Duration) (int64, error) {
	key := counterKey(keyID, bucket)

	pipe := s.redis.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, retention)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis incr rate counter: %w", err)
	}

	return incr.Val(), nil
}
