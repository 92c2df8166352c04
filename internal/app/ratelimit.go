package app

import (
	"context"
	"net/http"
	"time"

	"renda-edge/internal/common/logging"
	"renda-edge/internal/ratelimit"
	"renda-edge/internal/session"
)

// Limiters holds one limiter per policy. Nil limiters disable limiting.
type Limiters struct {
	Contact  *ratelimit.Limiter
	Click    *ratelimit.Limiter
	PageView *ratelimit.Limiter

	ClientIP ratelimit.IdentityFunc
	closers  []func() error
}

// limited applies l to h, or returns h when l is nil.
func limited(l *ratelimit.Limiter, h func(w http.ResponseWriter, r *http.Request)) http.Handler {
	if l == nil {
		return http.HandlerFunc(h)
	}
	return l.Middleware(http.HandlerFunc(h))
}

func (l *Limiters) Close() {
	for _, c := range l.closers {
		c()
	}
}

func (app *App) initializeRateLimiters(context.Context) error {
	proxies, err := ratelimit.NewProxyAwareIP(app.Config.TrustedProxies)
	if err != nil {
		return err
	}
	limiters := &Limiters{ClientIP: proxies.Identity}
	app.Limiters = limiters

	if !app.Config.RateLimitEnabled {
		app.Logger.Warn("Rate limiting disabled")
		return nil
	}

	store := app.rateLimitStore(limiters)

	policies := []struct {
		dst      **ratelimit.Limiter
		name     string
		max      int
		window   time.Duration
		identity ratelimit.IdentityFunc
	}{
		{&limiters.Contact, "contact", app.Config.ContactRateLimit, app.Config.ContactRateWindow, limiters.ClientIP},
		{&limiters.Click, "click", app.Config.ClickRateLimit, app.Config.ClickRateWindow, limiters.ClientIP},
		// visitors behind one NAT keep separate page-view budgets
		{&limiters.PageView, "pageview", app.Config.ClickRateLimit, app.Config.ClickRateWindow,
			ratelimit.SessionOrIP(session.ID, limiters.ClientIP)},
	}
	for _, p := range policies {
		l, err := ratelimit.New(ratelimit.Config{
			Name:     p.name,
			Max:      p.max,
			Window:   p.window,
			Identity: p.identity,
		}, store, app.Logger)
		if err != nil {
			return err
		}
		*p.dst = l
	}

	app.Logger.Info("Rate Limiting: Enabled",
		logging.String("strategy", app.Config.RateLimitStrategy),
		logging.Int("contact_limit", app.Config.ContactRateLimit),
		logging.Duration("contact_window", app.Config.ContactRateWindow),
		logging.Int("click_limit", app.Config.ClickRateLimit),
		logging.Duration("click_window", app.Config.ClickRateWindow),
	)
	return nil
}

func (app *App) rateLimitStore(limiters *Limiters) ratelimit.Store {
	if app.Config.RateLimitStrategy == "token_bucket" {
		if app.Config.RateLimitBackend == "redis" {
			app.Logger.Warn("Token bucket limits are per instance; ignoring RATE_LIMIT_BACKEND=redis")
		}
		return ratelimit.NewTokenBucketStore(time.Hour)
	}

	if app.Config.RateLimitBackend == "redis" {
		if app.RedisClient != nil {
			app.Logger.Info("Rate limit store: Redis")
			return ratelimit.NewRedisStore(app.RedisClient.Raw(), "renda:ratelimit:")
		}
		app.Logger.Warn("Redis unavailable, rate limits are per instance")
	}

	mem := ratelimit.NewMemoryStore(time.Minute)
	limiters.closers = append(limiters.closers, mem.Close)
	return mem
}
