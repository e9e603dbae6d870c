package watermark

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotFound indicates no watermark has been written for the key yet
	ErrNotFound = errors.New("watermark not found")

	// ErrInvalidRecord indicates the stored watermark is corrupted
	ErrInvalidRecord = errors.New("invalid watermark record")
)

// Store persists one timestamp per key.
type Store interface {
	// Get returns the stored watermark or ErrNotFound.
	Get(ctx context.Context, key string) (time.Time, error)

	// Set stores the watermark for key.
	Set(ctx context.Context, key string, ts time.Time) error
}

// Deleter is implemented by stores that can reset a watermark.
type Deleter interface {
	Delete(ctx context.Context, key string) error
}

// MemoryStore is an in-process Store, used for tests and one-shot runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Get returns the stored watermark or ErrNotFound.
func (m *MemoryStore) Get(ctx context.Context, key string) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[key]
	if !ok {
		storeMisses.WithLabelValues("memory").Inc()
		return time.Time{}, ErrNotFound
	}
	storeReads.WithLabelValues("memory").Inc()
	return rec.Time(), nil
}

// Set stores the watermark for key.
func (m *MemoryStore) Set(ctx context.Context, key string, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[key] = NewRecord(ts)
	storeWrites.WithLabelValues("memory").Inc()
	return nil
}

// Delete removes the watermark for key.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, key)
	return nil
}

// GetOrDefault reads key from store, returning def when nothing was written yet.
func GetOrDefault(ctx context.Context, store Store, key string, def time.Time) (time.Time, bool, error) {
	ts, err := store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return ts, true, nil
}
