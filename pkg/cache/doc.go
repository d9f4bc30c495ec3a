// Package cache provides a Redis-backed response cache for API calls.
//
// Responses are stored under a deterministic key derived from the API
// selector, the session identity and the call options, so each page of a
// paginated request is cached on its own. Failed calls are never cached.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//
//	// Wrap any pagination.Client
//	cached := cache.NewClient(apiClient, manager, time.Minute)
//
//	coord.Open(cached, "publicRooms", pagination.Options{"limit": 20})
//
// # Direct Access
//
//	key := cache.CacheKey{
//		API:      "publicRooms",
//		Identity: apiClient.Identity(),
//		Options:  pagination.Options{"limit": 20},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// call the API
//	}
//
// # Metrics
//
//   - response_cache_hits_total - Cache hits
//   - response_cache_misses_total - Cache misses
//   - response_cache_errors_total{operation} - Cache operation errors
//
// Cache failures never fail a call: the decorator logs them and falls
// through to the wrapped client.
package cache
