package app

import (
	"context"

	"renda-edge/internal/auth"
	"renda-edge/internal/cms"
	"renda-edge/internal/common/cache"
	"renda-edge/internal/common/logging"
	"renda-edge/internal/config"
	"renda-edge/internal/jobs"
	"renda-edge/internal/leads"
	"renda-edge/internal/locks"
	"renda-edge/internal/redis"
	"renda-edge/internal/revalidation"
	"renda-edge/internal/session"
	"renda-edge/internal/signature"
	"renda-edge/internal/storage"
)

// App holds all the application dependencies
type App struct {
	Config      *config.Config
	Storage     storage.Storage
	RedisClient *redis.Client
	Cache       cache.Store
	CMS         *cms.Client
	Verifier    *signature.Verifier
	Dispatcher  *revalidation.Dispatcher
	Auth        *auth.Auth
	Sessions    *session.Manager
	Leads       leads.Publisher
	Limiters    *Limiters
	Locks       locks.Manager
	Scheduler   *jobs.Scheduler
	Logger      logging.Logger
}

// New creates a new application instance with all dependencies
func New(cfg *config.Config) (*App, error) {
	app := &App{
		Config:   cfg,
		Logger:   logging.GetGlobalLogger().WithFields(logging.String("component", "app")),
		Sessions: session.NewManager(cfg.SessionCookieSecure),
	}
	ctx := context.Background()

	// Initialize components in order of dependency
	if err := app.initializeStorage(ctx); err != nil {
		return nil, err
	}

	if err := app.initializeRedis(); err != nil {
		// Redis is optional, just log the error
		app.Logger.Warn("Redis initialization failed, continuing without Redis", logging.Err(err))
	}

	steps := []func(context.Context) error{
		app.initializeCache,
		app.initializeCMS,
		app.initializeRevalidation,
		app.initializeAuth,
		app.initializeLeads,
		app.initializeRateLimiters,
		app.initializeJobs,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			app.Cleanup()
			return nil, err
		}
	}

	return app, nil
}

// Cleanup releases all resources
func (app *App) Cleanup() {
	if app.Limiters != nil {
		app.Limiters.Close()
	}
	if app.Leads != nil {
		if err := app.Leads.Close(); err != nil {
			app.Logger.Warn("Error closing lead publishers", logging.Err(err))
		}
	}
	if app.Locks != nil {
		app.Locks.Close()
	}
	if app.Cache != nil {
		app.Cache.Close()
	}
	if app.Storage != nil {
		app.Storage.Close()
	}
	if app.RedisClient != nil {
		app.RedisClient.Close()
	}
}
