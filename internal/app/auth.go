package app

import (
	"context"

	"renda-edge/internal/auth"
)

func (app *App) initializeAuth(ctx context.Context) error {
	// a nil *redis.Client must not become a non-nil interface
	var revocations auth.RedisInterface
	if app.RedisClient != nil {
		revocations = app.RedisClient
	}

	authInstance, err := auth.New(app.Storage, app.Config.JWTSecret, app.Config.SessionCookieSecure, revocations)
	if err != nil {
		return err
	}
	app.Auth = authInstance

	return authInstance.EnsureAdmin(ctx, app.Config.AdminUsername, app.Config.AdminPassword, app.Logger)
}
