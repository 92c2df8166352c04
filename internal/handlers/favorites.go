package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	apperrors "renda-edge/internal/common/errors"
	"renda-edge/internal/common/httputil"
	"renda-edge/internal/session"
	"renda-edge/internal/storage"
)

type FavoritesResponse struct {
	Favorites []*storage.Favorite `json:"favorites"`
}

// sessionAndSlug returns the visitor session and a validated {slug} path var.
func (h *Handlers) sessionAndSlug(r *http.Request) (string, string, error) {
	id := session.ID(r)
	if id == "" {
		return "", "", apperrors.ValidationError("session cookie required")
	}
	slug := mux.Vars(r)["slug"]
	if err := h.validator.Var(slug, "required,slug,max=200"); err != nil {
		return "", "", apperrors.ValidationError("invalid product slug")
	}
	return id, slug, nil
}

// ListFavorites returns the visitor's favorite products
// @Summary List favorites
// @Description Lists the products favorited by the current visitor session
// @Tags favorites
// @Produce json
// @Success 200 {object} FavoritesResponse
// @Router /api/favorites [get]
func (h *Handlers) ListFavorites(w http.ResponseWriter, r *http.Request) {
	id := session.ID(r)
	favorites := []*storage.Favorite{}
	if id != "" {
		list, err := h.storage.ListFavorites(r.Context(), id)
		if err != nil {
			httputil.WriteError(w, r, err)
			return
		}
		favorites = list
	}
	httputil.WriteJSON(w, http.StatusOK, FavoritesResponse{Favorites: favorites})
}

// AddFavorite favorites a product
// @Summary Add favorite
// @Description Adds a product to the current visitor's favorites. Adding twice is not an error.
// @Tags favorites
// @Param slug path string true "Product slug"
// @Success 204
// @Failure 400 {object} httputil.ErrorResponse
// @Router /api/favorites/{slug} [post]
func (h *Handlers) AddFavorite(w http.ResponseWriter, r *http.Request) {
	id, slug, err := h.sessionAndSlug(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if err := h.storage.AddFavorite(r.Context(), id, slug); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveFavorite removes a product from the favorites
// @Summary Remove favorite
// @Description Removes a product from the current visitor's favorites. Removing a missing favorite is not an error.
// @Tags favorites
// @Param slug path string true "Product slug"
// @Success 204
// @Failure 400 {object} httputil.ErrorResponse
// @Router /api/favorites/{slug} [delete]
func (h *Handlers) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	id, slug, err := h.sessionAndSlug(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if err := h.storage.RemoveFavorite(r.Context(), id, slug); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
