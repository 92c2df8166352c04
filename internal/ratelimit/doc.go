// Package ratelimit implements per-identity request limits for the public
// write endpoints (contact form, WhatsApp clicks, page views).
//
// The default policy is a fixed window: the first request from an identity
// opens a window of Config.Window and up to Config.Max requests are admitted
// in it. Rejected requests do not increment the count, so a record never
// holds more than Max. Stores are pluggable: MemoryStore for a single
// instance, RedisStore to share counts across instances, and
// TokenBucketStore for smoother refill.
//
// The middleware never lets a request through unchecked. A failed identity
// lookup falls back to the shared AnonymousIdentity bucket and a store
// failure answers 503.
package ratelimit
