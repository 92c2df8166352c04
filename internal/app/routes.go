package app

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"

	"renda-edge/internal/cms"
	"renda-edge/internal/common/cache"
	"renda-edge/internal/handlers"
	"renda-edge/internal/metrics"
	"renda-edge/internal/middleware"
)

// pageTags lists the content tags each cached page depends on. A webhook
// invalidating one of them drops every page that lists it.
var pageTags = map[string][]string{
	"/":                   {cms.TagSettings, cms.TagProducts, cms.TagNews},
	"/catalog":            {cms.TagProducts},
	"/product/{slug}":     {cms.TagProducts},
	"/associations":       {cms.TagAssociations},
	"/association/{slug}": {cms.TagAssociations, cms.TagProducts},
	"/news":               {cms.TagNews},
	"/news/{slug}":        {cms.TagNews},
	"/history":            {cms.TagSettings, cms.TagAssociations},
}

// Handlers builds the HTTP handlers from the initialized components.
func (app *App) Handlers() *handlers.Handlers {
	checks := map[string]handlers.HealthCheck{
		"cms": func(context.Context) error { return app.CMS.Health() },
	}
	if app.RedisClient != nil {
		checks["redis"] = app.RedisClient.Health
	}

	return handlers.New(handlers.Deps{
		Storage:    app.Storage,
		Content:    app.CMS,
		Verifier:   app.Verifier,
		Dispatcher: app.Dispatcher,
		Leads:      app.Leads,
		Auth:       app.Auth,
		Config:     app.Config,
		ClientIP:   app.Limiters.ClientIP,
		Checks:     checks,
		Logger:     app.Logger,
	})
}

// SetupRoutes configures all HTTP routes for the application
func (app *App) SetupRoutes(router *mux.Router, h *handlers.Handlers) {
	router.Use(
		middleware.RequestID,
		middleware.Recover,
		middleware.Logging,
		middleware.Metrics,
		middleware.SecurityHeaders,
	)

	// Ops
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	// CMS webhook, authenticated by signature
	router.HandleFunc("/api/revalidate", h.Revalidate).Methods(http.MethodPost)

	// Admin
	router.HandleFunc("/api/auth/login", h.Login).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/logout", h.Logout).Methods(http.MethodPost)
	router.Handle("/api/auth/me", app.Auth.RequireAuth(http.HandlerFunc(h.Me))).Methods(http.MethodGet)

	admin := router.PathPrefix("/api/admin").Subrouter()
	admin.Use(app.Auth.RequireAuth)
	admin.HandleFunc("/analytics", h.AdminAnalytics).Methods(http.MethodGet)
	admin.HandleFunc("/contacts", h.AdminContacts).Methods(http.MethodGet)
	admin.HandleFunc("/contacts.vcf", h.AdminContactsVCF).Methods(http.MethodGet)

	// Visitor API, scoped by the session cookie
	visitor := router.NewRoute().Subrouter()
	visitor.Use(app.Sessions.Middleware)
	visitor.Handle("/api/contact", limited(app.Limiters.Contact, h.Contact)).Methods(http.MethodPost)
	visitor.Handle("/api/whatsapp/click", limited(app.Limiters.Click, h.WhatsAppClick)).Methods(http.MethodPost)
	visitor.Handle("/go/whatsapp/{slug}", limited(app.Limiters.Click, h.WhatsAppRedirect)).Methods(http.MethodGet)
	visitor.Handle("/api/analytics/pageview", limited(app.Limiters.PageView, h.PageView)).Methods(http.MethodPost)
	visitor.HandleFunc("/api/favorites", h.ListFavorites).Methods(http.MethodGet)
	visitor.HandleFunc("/api/favorites/{slug}", h.AddFavorite).Methods(http.MethodPost)
	visitor.HandleFunc("/api/favorites/{slug}", h.RemoveFavorite).Methods(http.MethodDelete)

	// Page data, served from the page cache
	pages := map[string]http.HandlerFunc{
		"/":                   h.Home,
		"/catalog":            h.Catalog,
		"/product/{slug}":     h.Product,
		"/associations":       h.Associations,
		"/association/{slug}": h.Association,
		"/news":               h.News,
		"/news/{slug}":        h.NewsPost,
		"/history":            h.History,
	}
	for path, handler := range pages {
		cached := cache.PageMiddleware(app.Cache, app.Config.CacheTTL, cache.StaticTags(pageTags[path]...))
		router.Handle(path, cached(handler)).Methods(http.MethodGet)
	}
}
