package app

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"renda-edge/internal/common/logging"
	"renda-edge/internal/server"
)

// Handler returns the fully routed HTTP handler.
func (app *App) Handler() http.Handler {
	router := mux.NewRouter()
	app.SetupRoutes(router, app.Handlers())
	return router
}

// RunServer starts the job scheduler and builds the HTTP server
func (app *App) RunServer() *server.Server {
	app.Scheduler.Start()
	return server.New(app.Handler(), app.Config.Port, "", "")
}

// Shutdown stops background work and waits for running jobs.
func (app *App) Shutdown(ctx context.Context) error {
	if app.Scheduler == nil {
		return nil
	}
	if err := app.Scheduler.Stop(ctx); err != nil {
		app.Logger.Warn("Jobs did not stop in time", logging.Err(err))
		return err
	}
	app.Logger.Info("Job scheduler stopped")
	return nil
}
