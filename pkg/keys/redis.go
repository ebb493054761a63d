package keys

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists API key records in Redis as JSON values keyed by
// "apikey:<keyId>". Records have no TTL; keys are only ever disabled,
// never deleted, by the serving path.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis-backed key store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{redis: redisClient}
}

func recordKey(keyID string) string {
	return "apikey:" + keyID
}

func lastUsedKey(keyID string) string {
	return "apikey:" + keyID + ":last_used"
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, keyID string) (*APIKey, error) {
	data, err := s.redis.Get(ctx, recordKey(keyID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("redis get api key: %w", err)
	}

	var record APIKey
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshal api key record: %w", err)
	}

	// LastUsedAt lives in a sibling key so the touch is a plain SET
	// instead of a read-modify-write on the record.
	if ts, err := s.redis.Get(ctx, lastUsedKey(keyID)).Result(); err == nil {
		if parsed, perr := time.Parse(time.RFC3339Nano, ts); perr == nil {
			record.LastUsedAt = &parsed
		}
	}

	return &record, nil
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, key *APIKey) error {
	if key == nil || key.KeyID == "" {
		return fmt.Errorf("api key record requires a key id")
	}

	record := *key
	record.LastUsedAt = nil

	data, err := json.Marshal(&record)
	if err != nil {
		return fmt.Errorf("marshal api key record: %w", err)
	}

	if err := s.redis.Set(ctx, recordKey(key.KeyID), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set api key: %w", err)
	}
	return nil
}

// TouchLastUsed implements Store.
func (s *RedisStore) TouchLastUsed(ctx context.Context, keyID string, now time.Time) error {
	value := now.UTC().Format(time.RFC3339Nano)
	if err := s.redis.Set(ctx, lastUsedKey(keyID), value, 0).Err(); err != nil {
		return fmt.Errorf("redis touch last used: %w", err)
	}
	return nil
}
