// Package cache provides the storage tiers of the response cache.
//
// Two tiers are involved:
//
//   - a LocalStore, fast and process-local, implemented by MemoryStore
//     (fixed capacity, LRU eviction, per-entry TTL);
//   - an optional SharedStore shared by all processes, implemented by
//     RedisStore, ValkeyStore and SQLiteStore.
//
// The tiers hold independent copies of an Entry. MemoryStore clones entries
// on the way in and out; the shared stores serialize them as JSON.
//
// # Basic Usage
//
//	local := cache.NewMemoryStore(cache.DefaultMemoryConfig())
//	defer local.Close()
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	shared := cache.NewGuardedStore(
//		cache.NewRedisStore(redisClient, cache.DefaultPrefix),
//		cache.DefaultGuardConfig(),
//		logger,
//	)
//
//	key := cache.Key{Method: "GET", Path: "/items", Material: map[string]string{"accept-language": "en"}}
//	entry, err := shared.Get(ctx, key.String())
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// not cached yet
//	}
//
// # Failure Handling
//
// A networked store can be slow or down. GuardedStore bounds every call with
// a per-attempt timeout, retries once and opens a circuit breaker after
// repeated failures. Every failure it returns wraps ErrBackendUnavailable so
// callers can treat it as a miss.
//
// # Metrics
//
//   - respcache_hits_total{layer} - Lookup hits per tier
//   - respcache_misses_total{layer} - Lookup misses per tier
//   - respcache_stores_total{layer} - Entries written per tier
//   - respcache_errors_total{operation} - Shared store failures
//   - respcache_local_entries - Entries held by the memory store
//   - respcache_breaker_state{name} - 0 closed, 1 half-open, 2 open
package cache
