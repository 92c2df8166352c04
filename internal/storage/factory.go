package storage

import (
	"context"
	"fmt"
	"net/url"

	"renda-edge/internal/common/errors"
	"renda-edge/internal/config"
)

// NewStorage opens the database named by cfg through the default registry.
// The backend package must be imported for its registration side effect.
func NewStorage(ctx context.Context, cfg *config.Config) (Storage, error) {
	storageConfig, err := ConfigFrom(cfg)
	if err != nil {
		return nil, err
	}
	return Open(ctx, storageConfig)
}

// ConfigFrom derives the backend config and DSN from the service config.
func ConfigFrom(cfg *config.Config) (Config, error) {
	switch cfg.DatabaseType {
	case "sqlite":
		return Config{Type: "sqlite", DSN: cfg.DatabasePath}, nil

	case "postgres", "postgresql":
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(cfg.PostgresUser, cfg.PostgresPassword),
			Host:     fmt.Sprintf("%s:%s", cfg.PostgresHost, cfg.PostgresPort),
			Path:     "/" + cfg.PostgresDB,
			RawQuery: url.Values{"sslmode": {cfg.PostgresSSLMode}}.Encode(),
		}
		return Config{Type: "postgres", DSN: u.String()}, nil

	default:
		return Config{}, errors.ConfigError(fmt.Sprintf("unsupported database type: %s", cfg.DatabaseType))
	}
}
