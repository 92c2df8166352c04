package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	apperrors "renda-edge/internal/common/errors"
	"renda-edge/internal/common/httputil"
)

// Page-data routes return the JSON each site page renders. They sit behind
// the page cache, which is what webhook path invalidations drop.

func (h *Handlers) page(w http.ResponseWriter, r *http.Request, load func(ctx context.Context) (interface{}, error)) {
	data, err := load(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, data)
}

// slugPage validates the {slug} path var before loading.
func (h *Handlers) slugPage(w http.ResponseWriter, r *http.Request, resource string, load func(ctx context.Context, slug string) (interface{}, error)) {
	slug := mux.Vars(r)["slug"]
	if err := h.validator.Var(slug, "required,slug,max=200"); err != nil {
		httputil.WriteError(w, r, apperrors.NotFoundError(resource))
		return
	}
	h.page(w, r, func(ctx context.Context) (interface{}, error) { return load(ctx, slug) })
}

// Home serves the landing page data
// @Summary Home page
// @Description Site settings, featured products and latest news
// @Tags pages
// @Produce json
// @Success 200 {object} cms.HomePage
// @Router / [get]
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, func(ctx context.Context) (interface{}, error) { return h.content.Home(ctx) })
}

// Catalog serves the product catalog
// @Summary Catalog
// @Tags pages
// @Produce json
// @Success 200 {array} cms.Product
// @Router /catalog [get]
func (h *Handlers) Catalog(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, func(ctx context.Context) (interface{}, error) { return h.content.Products(ctx) })
}

// Product serves one product
// @Summary Product page
// @Tags pages
// @Produce json
// @Param slug path string true "Product slug"
// @Success 200 {object} cms.Product
// @Failure 404 {object} httputil.ErrorResponse
// @Router /product/{slug} [get]
func (h *Handlers) Product(w http.ResponseWriter, r *http.Request) {
	h.slugPage(w, r, "product", func(ctx context.Context, slug string) (interface{}, error) {
		return h.content.Product(ctx, slug)
	})
}

// Associations serves the association list
// @Summary Associations
// @Tags pages
// @Produce json
// @Success 200 {array} cms.Association
// @Router /associations [get]
func (h *Handlers) Associations(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, func(ctx context.Context) (interface{}, error) { return h.content.Associations(ctx) })
}

// Association serves one association with its products
// @Summary Association page
// @Tags pages
// @Produce json
// @Param slug path string true "Association slug"
// @Success 200 {object} cms.Association
// @Failure 404 {object} httputil.ErrorResponse
// @Router /association/{slug} [get]
func (h *Handlers) Association(w http.ResponseWriter, r *http.Request) {
	h.slugPage(w, r, "association", func(ctx context.Context, slug string) (interface{}, error) {
		return h.content.Association(ctx, slug)
	})
}

// News serves the news list
// @Summary News
// @Tags pages
// @Produce json
// @Success 200 {array} cms.NewsPost
// @Router /news [get]
func (h *Handlers) News(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, func(ctx context.Context) (interface{}, error) { return h.content.News(ctx, 0) })
}

// NewsPost serves one news post
// @Summary News post
// @Tags pages
// @Produce json
// @Param slug path string true "Post slug"
// @Success 200 {object} cms.NewsPost
// @Failure 404 {object} httputil.ErrorResponse
// @Router /news/{slug} [get]
func (h *Handlers) NewsPost(w http.ResponseWriter, r *http.Request) {
	h.slugPage(w, r, "news post", func(ctx context.Context, slug string) (interface{}, error) {
		return h.content.NewsPost(ctx, slug)
	})
}

// History serves the cooperative history page
// @Summary History page
// @Tags pages
// @Produce json
// @Success 200 {object} cms.HistoryPage
// @Router /history [get]
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, func(ctx context.Context) (interface{}, error) { return h.content.History(ctx) })
}
