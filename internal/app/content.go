package app

import (
	"context"
	"time"

	"renda-edge/internal/cms"
	"renda-edge/internal/common/cache"
	"renda-edge/internal/common/logging"
	"renda-edge/internal/revalidation"
	"renda-edge/internal/signature"
)

// initializeCache builds the store shared by the page cache and the CMS
// client. Redis-backed types fall back to local when Redis is down.
func (app *App) initializeCache(ctx context.Context) error {
	backend := cache.Type(app.Config.CacheBackend)
	if backend != cache.TypeLocal && app.RedisClient == nil {
		app.Logger.Warn("Redis unavailable, falling back to local cache",
			logging.String("configured", app.Config.CacheBackend),
		)
		backend = cache.TypeLocal
	}

	store, err := cache.New(ctx, cache.Config{
		Type:  backend,
		TTL:   app.Config.CacheTTL,
		Redis: app.RedisClient,
	})
	if err != nil {
		return err
	}
	app.Cache = store
	app.Logger.Info("Cache initialized",
		logging.String("backend", string(backend)),
		logging.Duration("ttl", app.Config.CacheTTL),
	)
	return nil
}

func (app *App) initializeCMS(context.Context) error {
	client, err := cms.NewClient(cms.Config{
		ProjectID:  app.Config.SanityProjectID,
		Dataset:    app.Config.SanityDataset,
		APIVersion: app.Config.SanityAPIVersion,
		Token:      app.Config.SanityAPIToken,
		UseCDN:     app.Config.SanityUseCDN,
		Timeout:    10 * time.Second,
		CacheTTL:   app.Config.CacheTTL,
	}, app.Cache, app.Logger)
	if err != nil {
		return err
	}
	app.CMS = client
	return nil
}

// initializeRevalidation accepts Sanity's timestamped signature and a plain
// body HMAC in the same header.
func (app *App) initializeRevalidation(context.Context) error {
	header := app.Config.WebhookHeader
	verifier, err := signature.NewVerifier(app.Config.WebhookSecret, app.Logger,
		signature.SanityScheme(header, app.Config.WebhookTimestampTolerance),
		signature.PlainScheme(header),
	)
	if err != nil {
		return err
	}
	if !verifier.Configured() {
		app.Logger.Warn("SANITY_WEBHOOK_SECRET is not set; revalidation webhooks will be rejected")
	}

	app.Verifier = verifier
	app.Dispatcher = revalidation.NewDispatcher(app.Cache, app.Logger)
	return nil
}
