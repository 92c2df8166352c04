package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	apperrors "renda-edge/internal/common/errors"
	"renda-edge/internal/common/httputil"
	"renda-edge/internal/common/logging"
	"renda-edge/internal/metrics"
)

// AnonymousIdentity is the shared bucket for requests whose identity cannot
// be determined.
const AnonymousIdentity = "anonymous"

// IdentityFunc derives the rate-limit identity of a request.
type IdentityFunc func(r *http.Request) (string, error)

// Config describes one named policy, e.g. "contact" at 5 per hour.
type Config struct {
	Name     string
	Window   time.Duration
	Max      int
	Identity IdentityFunc // defaults to RemoteAddr
}

func (c Config) validate() error {
	if c.Name == "" {
		return fmt.Errorf("rate limit policy name is required")
	}
	if c.Max < 1 {
		return fmt.Errorf("rate limit %s: max must be positive", c.Name)
	}
	if c.Window <= 0 {
		return fmt.Errorf("rate limit %s: window must be positive", c.Name)
	}
	return nil
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter applies a Config against a Store.
type Limiter struct {
	config Config
	store  Store
	logger logging.Logger
	now    Clock
}

func New(config Config, store Store, logger logging.Logger) (*Limiter, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("rate limit %s: store is required", config.Name)
	}
	if config.Identity == nil {
		config.Identity = RemoteAddr
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Limiter{
		config: config,
		store:  store,
		logger: logger.WithFields(logging.String("component", "ratelimit"), logging.String("policy", config.Name)),
		now:    time.Now,
	}, nil
}

// Name returns the policy name.
func (l *Limiter) Name() string {
	return l.config.Name
}

// Allow records a request for identity and reports whether it may proceed.
func (l *Limiter) Allow(ctx context.Context, identity string) (Decision, error) {
	key := l.config.Name + ":" + identity
	rec, allowed, err := l.store.Take(ctx, key, l.config.Max, l.config.Window)
	if err != nil {
		return Decision{}, apperrors.UnavailableError("rate limit store unavailable", err).
			WithContext("policy", l.config.Name)
	}

	remaining := l.config.Max - rec.Count
	if remaining < 0 {
		remaining = 0
	}
	d := Decision{
		Allowed:   allowed,
		Limit:     l.config.Max,
		Remaining: remaining,
		ResetAt:   rec.ResetAt,
	}
	if !allowed {
		d.RetryAfter = rec.ResetAt.Sub(l.now())
		if d.RetryAfter < time.Second {
			d.RetryAfter = time.Second
		}
	}
	return d, nil
}

// Middleware rejects requests over the limit with 429 without calling next.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := l.config.Identity(r)
		if err != nil || identity == "" {
			l.logger.Warn("Could not determine client identity, using shared bucket",
				logging.String("path", r.URL.Path),
				logging.Any("error", err),
			)
			identity = AnonymousIdentity
		}

		d, err := l.Allow(r.Context(), identity)
		if err != nil {
			metrics.RateLimitDecisions.WithLabelValues(l.config.Name, "error").Inc()
			l.logger.Error("Rate limit check failed, rejecting request", err,
				logging.String("identity", identity),
				logging.String("path", r.URL.Path),
			)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, httputil.ErrorResponse{Error: "service temporarily unavailable"})
			return
		}

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

		if !d.Allowed {
			metrics.RateLimitDecisions.WithLabelValues(l.config.Name, "rejected").Inc()
			l.logger.Info("Rate limit exceeded",
				logging.String("identity", identity),
				logging.String("path", r.URL.Path),
				logging.Time("reset_at", d.ResetAt),
			)
			h.Set("Retry-After", strconv.Itoa(int(d.RetryAfter.Round(time.Second)/time.Second)))
			httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.ErrorResponse{Error: "too many requests"})
			return
		}

		metrics.RateLimitDecisions.WithLabelValues(l.config.Name, "allowed").Inc()
		next.ServeHTTP(w, r)
	})
}
