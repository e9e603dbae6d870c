package watermark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists watermarks in Redis as JSON records.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a new watermark store with Redis backend.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis: redisClient,
	}
}

// Get retrieves the watermark for key.
// Returns ErrNotFound if the key doesn't exist.
func (s *RedisStore) Get(ctx context.Context, key string) (time.Time, error) {
	rec, err := s.GetRecord(ctx, key)
	if err != nil {
		return time.Time{}, err
	}
	return rec.Time(), nil
}

// GetRecord retrieves the full record for key.
func (s *RedisStore) GetRecord(ctx context.Context, key string) (*Record, error) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			storeMisses.WithLabelValues("redis").Inc()
			return nil, ErrNotFound
		}
		storeErrors.WithLabelValues("redis", "get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		storeErrors.WithLabelValues("redis", "get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	storeReads.WithLabelValues("redis").Inc()
	return &rec, nil
}

// Set stores the watermark for key without expiry.
func (s *RedisStore) Set(ctx context.Context, key string, ts time.Time) error {
	data, err := json.Marshal(NewRecord(ts))
	if err != nil {
		storeErrors.WithLabelValues("redis", "set").Inc()
		return fmt.Errorf("marshal watermark: %w", err)
	}

	if err := s.redis.Set(ctx, key, data, 0).Err(); err != nil {
		storeErrors.WithLabelValues("redis", "set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	storeWrites.WithLabelValues("redis").Inc()
	return nil
}

// Delete removes the watermark for key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		storeErrors.WithLabelValues("redis", "delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}
