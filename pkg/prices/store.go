package prices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrSnapshotMiss indicates no stored snapshot exists for the symbol.
	ErrSnapshotMiss = errors.New("snapshot miss")

	// ErrInvalidSnapshot indicates the stored record is corrupted.
	ErrInvalidSnapshot = errors.New("invalid snapshot record")
)

// Store is the persisted snapshot collection. Every write fully replaces
// the prior snapshot for the symbol.
type Store interface {
	// Get returns the snapshot for symbol, or ErrSnapshotMiss.
	Get(ctx context.Context, symbol string) (*Snapshot, error)

	// GetMulti returns the stored snapshots for symbols. Missing
	// symbols are absent from the result, not an error.
	GetMulti(ctx context.Context, symbols []string) (map[string]*Snapshot, error)

	// Put stores one snapshot, replacing any prior record.
	Put(ctx context.Context, snapshot *Snapshot) error

	// PutMulti stores a batch of snapshots.
	PutMulti(ctx context.Context, snapshots []*Snapshot) error
}

// RedisStore persists snapshots in Redis as JSON values keyed by
// "price:<SYMBOL>". The Redis key TTL mirrors the record's ExpiresAt so
// storage expiry and physical eviction agree.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis-backed snapshot store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{redis: redisClient}
}

func snapshotKey(symbol string) string {
	return "price:" + symbol
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, symbol string) (*Snapshot, error) {
	data, err := s.redis.Get(ctx, snapshotKey(symbol)).Bytes()
	if err != nil {
		if err == redis.Nil {
			cacheMissesTotal.Inc()
			return nil, ErrSnapshotMiss
		}
		cacheErrorsTotal.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get snapshot: %w", err)
	}

	snapshot, err := decodeSnapshot(data)
	if err != nil {
		cacheErrorsTotal.WithLabelValues("get").Inc()
		return nil, err
	}

	// A record past its storage expiry is invalid for any purpose,
	// even if Redis has not evicted it yet.
	if snapshot.Expired(time.Now()) {
		_ = s.redis.Del(ctx, snapshotKey(symbol)).Err()
		cacheMissesTotal.Inc()
		return nil, ErrSnapshotMiss
	}

	cacheHitsTotal.Inc()
	return snapshot, nil
}

// GetMulti implements Store.
func (s *RedisStore) GetMulti(ctx context.Context, symbols []string) (map[string]*Snapshot, error) {
	if len(symbols) == 0 {
		return map[string]*Snapshot{}, nil
	}

	redisKeys := make([]string, len(symbols))
	for i, symbol := range symbols {
		redisKeys[i] = snapshotKey(symbol)
	}

	values, err := s.redis.MGet(ctx, redisKeys...).Result()
	if err != nil {
		cacheErrorsTotal.WithLabelValues("mget").Inc()
		return nil, fmt.Errorf("redis mget snapshots: %w", err)
	}

	now := time.Now()
	result := make(map[string]*Snapshot, len(symbols))
	for i, value := range values {
		if value == nil {
			cacheMissesTotal.Inc()
			continue
		}
		raw, ok := value.(string)
		if !ok {
			cacheErrorsTotal.WithLabelValues("mget").Inc()
			continue
		}
		snapshot, err := decodeSnapshot([]byte(raw))
		if err != nil {
			cacheErrorsTotal.WithLabelValues("mget").Inc()
			continue
		}
		if snapshot.Expired(now) {
			cacheMissesTotal.Inc()
			continue
		}
		cacheHitsTotal.Inc()
		result[symbols[i]] = snapshot
	}

	return result, nil
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, snapshot *Snapshot) error {
	if snapshot == nil {
		return fmt.Errorf("snapshot cannot be nil")
	}
	if err := snapshot.Validate(); err != nil {
		return err
	}

	ttl := time.Until(snapshot.ExpiresAt)
	if ttl <= 0 {
		// Already past storage expiry, nothing to store.
		return nil
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		cacheErrorsTotal.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := s.redis.Set(ctx, snapshotKey(snapshot.Symbol), data, ttl).Err(); err != nil {
		cacheErrorsTotal.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set snapshot: %w", err)
	}

	return nil
}

// PutMulti implements Store.
func (s *RedisStore) PutMulti(ctx context.Context, snapshots []*Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	pipe := s.redis.Pipeline()
	for _, snapshot := range snapshots {
		if snapshot == nil {
			return fmt.Errorf("snapshot cannot be nil")
		}
		if err := snapshot.Validate(); err != nil {
			return err
		}
		ttl := time.Until(snapshot.ExpiresAt)
		if ttl <= 0 {
			continue
		}
		data, err := json.Marshal(snapshot)
		if err != nil {
			cacheErrorsTotal.WithLabelValues("set").Inc()
			return fmt.Errorf("marshal snapshot: %w", err)
		}
		pipe.Set(ctx, snapshotKey(snapshot.Symbol), data, ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		cacheErrorsTotal.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set snapshots: %w", err)
	}

	return nil
}

func decodeSnapshot(data []byte) (*Snapshot, error) {
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if err := snapshot.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return &snapshot, nil
}
