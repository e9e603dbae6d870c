package poll

import (
	"time"

	"github.com/Sternrassler/connector-poller/pkg/emit"
)

// Predicate decides whether an item is new relative to the watermark.
type Predicate[T any] func(item T, env emit.Envelope, watermark time.Time) bool

// Filter is either NoFilter or a Predicate. The zero value is NoFilter.
type Filter[T any] struct {
	pred Predicate[T]
}

// NoFilter treats every fetched item as new. Use it when the source already
// returns only unseen items.
func NoFilter[T any]() Filter[T] {
	return Filter[T]{}
}

// Where filters with pred. A nil pred is NoFilter.
func Where[T any](pred Predicate[T]) Filter[T] {
	return Filter[T]{pred: pred}
}

// NewerThanWatermark keeps items whose envelope timestamp is strictly after
// the watermark.
func NewerThanWatermark[T any]() Filter[T] {
	return Where(func(_ T, env emit.Envelope, watermark time.Time) bool {
		return env.TS.After(watermark)
	})
}

// Enabled reports whether the filter carries a predicate.
func (f Filter[T]) Enabled() bool {
	return f.pred != nil
}

// Keep applies the predicate; NoFilter keeps everything.
func (f Filter[T]) Keep(item T, env emit.Envelope, watermark time.Time) bool {
	if f.pred == nil {
		return true
	}
	return f.pred(item, env, watermark)
}
