package emit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Seen remembers emitted envelope ids.
type Seen interface {
	// Has reports whether id was marked before.
	Has(ctx context.Context, id string) (bool, error)

	// Mark records id.
	Mark(ctx context.Context, id string) error
}

// MemorySeen is an unbounded in-process Seen set.
type MemorySeen struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewMemorySeen creates an empty set.
func NewMemorySeen() *MemorySeen {
	return &MemorySeen{ids: make(map[string]struct{})}
}

// Has reports whether id was marked.
func (m *MemorySeen) Has(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.ids[id]
	return ok, nil
}

// Mark records id.
func (m *MemorySeen) Mark(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids[id] = struct{}{}
	return nil
}

// RedisSeen keeps ids in Redis with a TTL, shared across poller replicas.
type RedisSeen struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSeen creates a Redis-backed Seen set.
func NewRedisSeen(redisClient *redis.Client, prefix string, ttl time.Duration) *RedisSeen {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = "seen"
	}
	return &RedisSeen{redis: redisClient, prefix: prefix, ttl: ttl}
}

// Has reports whether the id key exists.
func (r *RedisSeen) Has(ctx context.Context, id string) (bool, error) {
	n, err := r.redis.Exists(ctx, r.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Mark sets the id key with the configured TTL (0 keeps it forever).
func (r *RedisSeen) Mark(ctx context.Context, id string) error {
	if err := r.redis.Set(ctx, r.key(id), 1, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisSeen) key(id string) string {
	return r.prefix + ":" + id
}

// uniqueSink drops events whose envelope id was already emitted.
type uniqueSink[T any] struct {
	next Sink[T]
	seen Seen
}

// Unique wraps next so that each envelope id reaches it at most once. An id
// is only marked after next accepted the event, so failed deliveries are
// retried on the following pass.
func Unique[T any](next Sink[T], seen Seen) Sink[T] {
	return &uniqueSink[T]{next: next, seen: seen}
}

func (u *uniqueSink[T]) Emit(ctx context.Context, item T, env Envelope) error {
	dup, err := u.seen.Has(ctx, env.ID)
	if err != nil {
		return err
	}
	if dup {
		duplicatesDroppedTotal.Inc()
		return nil
	}
	if err := u.next.Emit(ctx, item, env); err != nil {
		return err
	}
	return u.seen.Mark(ctx, env.ID)
}
