package handlers

import (
	"net/http"
	"time"

	"renda-edge/internal/auth"
	apperrors "renda-edge/internal/common/errors"
	"renda-edge/internal/common/httputil"
	"renda-edge/internal/common/logging"
)

type LoginRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=200"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type MeResponse struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Login authenticates an admin
// @Summary Admin login
// @Description Checks admin credentials, sets the admin cookie and returns the token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} httputil.ErrorResponse
// @Failure 401 {object} httputil.ErrorResponse
// @Router /api/auth/login [post]
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := h.decode(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	token, claims, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrTypeAuth) {
			h.log(r).Warn("Failed admin login", logging.String("username", req.Username))
			httputil.WriteError(w, r, apperrors.AuthError("invalid credentials"))
			return
		}
		httputil.WriteError(w, r, err)
		return
	}

	h.auth.SetCookie(w, token)
	h.log(r).Info("Admin logged in", logging.String("username", claims.Username))
	httputil.WriteJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		Username:  claims.Username,
		ExpiresAt: claims.ExpiresAt.Time,
	})
}

// Logout revokes the admin token
// @Summary Admin logout
// @Description Revokes the current admin token and clears the cookie
// @Tags auth
// @Produce json
// @Success 200 {object} httputil.MessageResponse
// @Router /api/auth/logout [post]
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if token := auth.TokenFromRequest(r); token != "" {
		if err := h.auth.Logout(r.Context(), token); err != nil && !apperrors.IsType(err, apperrors.ErrTypeAuth) {
			h.log(r).Error("Failed to revoke admin token", err)
		}
	}
	h.auth.ClearCookie(w)
	httputil.WriteJSON(w, http.StatusOK, httputil.MessageResponse{Message: "Logged out"})
}

// Me returns the logged-in admin
// @Summary Current admin
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} MeResponse
// @Failure 401 {object} httputil.ErrorResponse
// @Router /api/auth/me [get]
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, r, apperrors.AuthError("authentication required"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, MeResponse{UserID: claims.UserID, Username: claims.Username})
}
