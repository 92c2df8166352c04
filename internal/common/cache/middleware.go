package cache

import (
	"bytes"
	"net/http"
	"time"

	"renda-edge/internal/metrics"
)

// TagFunc returns the content tags of the page served for r.
type TagFunc func(r *http.Request) []string

// StaticTags returns a TagFunc that always yields tags.
func StaticTags(tags ...string) TagFunc {
	return func(*http.Request) []string { return tags }
}

type recorder struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (r *recorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

// PageMiddleware serves GET responses from store, keyed by request URI and
// tagged with the path tag plus tags(r). Only 200 responses are stored.
func PageMiddleware(store Store, ttl time.Duration, tags TagFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			key := PathKey(r.URL.RequestURI())
			if body, ok := store.Get(r.Context(), key); ok {
				metrics.CacheLookups.WithLabelValues("hit").Inc()
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Cache", "HIT")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write(body)
				return
			}
			metrics.CacheLookups.WithLabelValues("miss").Inc()

			w.Header().Set("X-Cache", "MISS")
			rec := &recorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			if rec.status != http.StatusOK {
				return
			}
			allTags := []string{PathTag(r.URL.Path)}
			if tags != nil {
				allTags = append(allTags, tags(r)...)
			}
			_ = store.Set(r.Context(), key, rec.buf.Bytes(), ttl, allTags...)
		})
	}
}
