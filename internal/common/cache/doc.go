// Package cache stores rendered page data and CMS query results, indexed by
// path and by content tag, so a CMS webhook can drop exactly what changed.
//
// Backends:
//
//  1. LocalStore: github.com/patrickmn/go-cache plus an in-memory tag index.
//     Per instance only.
//  2. RedisStore: values as Redis strings, tag membership as Redis sets.
//     Shared by every instance.
//  3. TwoTierStore: LocalStore in front of RedisStore. Invalidations are
//     broadcast on a pub/sub channel so every instance drops its L1 copy.
//
// Usage:
//
//	store, err := cache.New(ctx, cache.Config{Type: cache.TypeLocal, TTL: 10 * time.Minute})
//	store.Set(ctx, cache.PathKey("/catalog"), body, 0, cache.PathTag("/catalog"), "products")
//	store.InvalidateTag(ctx, "products")
//	store.InvalidatePath(ctx, "/catalog")
package cache
