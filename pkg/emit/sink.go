package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var emittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "connector_events_emitted_total",
	Help: "Total events handed to a sink by sink type",
}, []string{"sink"})

var duplicatesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "connector_events_duplicates_dropped_total",
	Help: "Total events dropped because their id was already emitted",
})

// Sink receives emitted items.
type Sink[T any] interface {
	Emit(ctx context.Context, item T, env Envelope) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc[T any] func(ctx context.Context, item T, env Envelope) error

// Emit calls f.
func (f SinkFunc[T]) Emit(ctx context.Context, item T, env Envelope) error {
	return f(ctx, item, env)
}

// Event is an item together with its envelope.
type Event[T any] struct {
	Item     T
	Envelope Envelope
}

// MemorySink records events in emission order.
type MemorySink[T any] struct {
	mu     sync.Mutex
	events []Event[T]
}

// NewMemorySink creates an empty recording sink.
func NewMemorySink[T any]() *MemorySink[T] {
	return &MemorySink[T]{}
}

// Emit records the event.
func (s *MemorySink[T]) Emit(ctx context.Context, item T, env Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, Event[T]{Item: item, Envelope: env})
	emittedTotal.WithLabelValues("memory").Inc()
	return nil
}

// Events returns a copy of the recorded events.
func (s *MemorySink[T]) Events() []Event[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event[T](nil), s.events...)
}

// Reset drops recorded events.
func (s *MemorySink[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

// LogSink writes each event as a structured log line.
type LogSink[T any] struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink logging through logger.
func NewLogSink[T any](logger zerolog.Logger) *LogSink[T] {
	return &LogSink[T]{logger: logger}
}

// Emit logs the event at info level with the item as JSON.
func (s *LogSink[T]) Emit(ctx context.Context, item T, env Envelope) error {
	s.logger.Info().
		Str("id", env.ID).
		Time("ts", env.TS).
		Str("summary", env.Summary).
		Interface("item", item).
		Msg("Event emitted")
	emittedTotal.WithLabelValues("log").Inc()
	return nil
}

// RedisStreamSink appends events to a Redis stream.
type RedisStreamSink[T any] struct {
	redis  *redis.Client
	stream string
	maxLen int64
}

// NewRedisStreamSink creates a sink appending to stream, trimmed
// approximately to maxLen entries (0 disables trimming).
func NewRedisStreamSink[T any](redisClient *redis.Client, stream string, maxLen int64) *RedisStreamSink[T] {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStreamSink[T]{redis: redisClient, stream: stream, maxLen: maxLen}
}

// Emit adds one stream entry with id, ts (ms), summary and the JSON item.
func (s *RedisStreamSink[T]) Emit(ctx context.Context, item T, env Envelope) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal item %s: %w", env.ID, err)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"id":      env.ID,
			"ts":      env.TS.UnixMilli(),
			"summary": env.Summary,
			"item":    string(payload),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := s.redis.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis xadd %s: %w", s.stream, err)
	}
	emittedTotal.WithLabelValues("redis_stream").Inc()
	return nil
}
