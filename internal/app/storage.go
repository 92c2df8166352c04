package app

import (
	"context"
	"fmt"

	"renda-edge/internal/common/logging"
	"renda-edge/internal/storage"
	_ "renda-edge/internal/storage/sqlstore"
)

func (app *App) initializeStorage(ctx context.Context) error {
	if app.Config.IsPostgres() {
		app.Logger.Info("Database: PostgreSQL",
			logging.String("host", app.Config.PostgresHost),
			logging.String("port", app.Config.PostgresPort),
			logging.String("database", app.Config.PostgresDB),
		)
	} else {
		app.Logger.Info("Database: SQLite", logging.String("path", app.Config.DatabasePath))
	}

	store, err := storage.NewStorage(ctx, app.Config)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	app.Storage = store
	return nil
}
