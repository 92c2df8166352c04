package middleware

import (
	"net/http"
	"time"

	"renda-edge/internal/common/logging"
)

// Logging logs every request with method, path, status and duration.
// 5xx responses log at error level, 4xx at warn.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := wrap(w)

		next.ServeHTTP(wrapped, r)

		fields := []logging.Field{
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", wrapped.statusCode),
			logging.Int64("duration_ms", time.Since(start).Milliseconds()),
			logging.String("remote_addr", r.RemoteAddr),
		}
		if r.URL.RawQuery != "" {
			fields = append(fields, logging.String("query", r.URL.RawQuery))
		}
		if ua := r.Header.Get("User-Agent"); ua != "" {
			fields = append(fields, logging.String("user_agent", ua))
		}
		if cache := wrapped.Header().Get("X-Cache"); cache != "" {
			fields = append(fields, logging.String("cache", cache))
		}

		logger := logging.WithContext(r.Context())
		switch {
		case wrapped.statusCode >= 500:
			logger.Error("HTTP request completed", nil, fields...)
		case wrapped.statusCode >= 400:
			logger.Warn("HTTP request completed", fields...)
		default:
			logger.Info("HTTP request completed", fields...)
		}
	})
}
