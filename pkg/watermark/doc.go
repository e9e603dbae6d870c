// Package watermark persists the "last seen" timestamp of polling sources.
//
// A watermark is the creation time of the most recently emitted item. The
// polling engine reads it at the start of each pass and writes it at most once
// per pass. Each connector instance owns its own key, so there is no shared
// mutable state between instances.
//
// # Backends
//
//   - MemoryStore: in-process, for tests and one-shot runs
//   - RedisStore: JSON records in Redis, shared by replicas of the poller
//   - SQLiteStore: a single-file database for standalone deployments
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//	store := watermark.NewRedisStore(redisClient)
//
//	key := watermark.Key{Connector: "frontapp", Instance: "acme"}.String()
//
//	ts, err := store.Get(ctx, key)
//	if errors.Is(err, watermark.ErrNotFound) {
//		// first run - use the source's sentinel
//	}
//
//	if err := store.Set(ctx, key, newest); err != nil {
//		return err
//	}
//
// # Metrics
//
//   - watermark_reads_total{backend}
//   - watermark_misses_total{backend}
//   - watermark_writes_total{backend}
//   - watermark_errors_total{backend, operation}
package watermark
