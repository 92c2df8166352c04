package cache

import (
	"context"
	"strings"
	"time"
)

// Store is a byte cache with tag-based invalidation. Invalidating a missing
// path or tag is not an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores value under key. A zero ttl uses the store default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error
	Delete(ctx context.Context, key string) error
	InvalidatePath(ctx context.Context, path string) error
	InvalidateTag(ctx context.Context, tag string) error
	Clear(ctx context.Context) error
	Close() error
}

// PathKey is the cache key of the page data for a request URI.
func PathKey(requestURI string) string {
	return "page:" + requestURI
}

// PathTag is the tag attached to every entry rendered for path, whatever its
// query string, so InvalidatePath drops all variants.
func PathTag(path string) string {
	return "path:" + NormalizePath(path)
}

// NormalizePath makes "/catalog/" and "/catalog" equal. The root stays "/".
func NormalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}
