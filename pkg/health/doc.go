// Package health provides the persisted health and latency cache for
// provider credentials.
//
// # Overview
//
// The cache keeps one record per (provider, credential) pair: rolling
// success and failure counts, an exponentially weighted latency average,
// and a cooldown expiry. A rate-limited credential cools down for 10
// minutes; five consecutive failures trigger a 2 minute cooldown. Records
// are never deleted, only updated.
//
// Every mutation is written through to the state file so a restarted
// process inherits prior health knowledge (hot start). A missing or corrupt
// state file degrades to cold state where every credential is available
// with zero prior latency. Persistence failures are logged and swallowed;
// they never fail a dispatch.
//
// # Usage
//
//	cache := health.NewCache(state.NewFileStore(path), health.Options{})
//	cache.Record("openai", "sk-1", health.Success(420*time.Millisecond))
//	if cache.IsAvailable("openai", "sk-1") {
//	    // credential may be selected
//	}
package health
