package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestRedisCounterStore_Incr(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisCounterStore(client)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := store.Incr(ctx, "key_a", "202403011200", CounterRetention)
		if err != nil {
			t.Fatalf("Incr() error = %v", err)
		}
		if got != want {
			t.Errorf("Incr() = %d, want %d", got, want)
		}
	}
}

func TestRedisCounterStore_BucketsAreIndependent(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisCounterStore(client)
	ctx := context.Background()

	if _, err := store.Incr(ctx, "key_a", "202403011200", CounterRetention); err != nil {
		t.Fatalf("Incr() error = %v", err)
	}

	got, err := store.Incr(ctx, "key_a", "202403011201", CounterRetention)
	if err != nil {
		t.Fatalf("Incr() error = %v", err)
	}
	if got != 1 {
		t.Errorf("new bucket count = %d, want 1", got)
	}
}

func TestRedisCounterStore_SetsRetention(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisCounterStore(client)
	ctx := context.Background()

	if _, err := store.Incr(ctx, "key_a", "202403011200", time.Hour); err != nil {
		t.Fatalf("Incr() error = %v", err)
	}

	ttl, err := client.TTL(ctx, counterKey("key_a", "202403011200")).Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl <= 0 || ttl > time.Hour {
		t.Errorf("TTL = %v, want (0, 1h]", ttl)
	}
}
