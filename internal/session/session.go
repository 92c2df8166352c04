// Package session gives every visitor an anonymous, long-lived session id.
package session

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"renda-edge/internal/common/logging"
)

const (
	CookieName = "renda_session"
	maxAge     = 365 * 24 * time.Hour
)

// Manager issues and reads the visitor session cookie.
type Manager struct {
	secure bool
}

func NewManager(secure bool) *Manager {
	return &Manager{secure: secure}
}

// Middleware makes sure the request carries a session id, setting the cookie
// when it is missing or malformed, and stores the id in the context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := fromCookie(r)
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    id,
				Path:     "/",
				MaxAge:   int(maxAge.Seconds()),
				HttpOnly: true,
				Secure:   m.secure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(logging.ContextWithSessionID(r.Context(), id)))
	})
}

func fromCookie(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	id, err := uuid.Parse(c.Value)
	if err != nil {
		return ""
	}
	return id.String()
}

// ID returns the session id of r: the one set by Middleware, else a valid
// cookie, else "".
func ID(r *http.Request) string {
	if id := FromContext(r.Context()); id != "" {
		return id
	}
	return fromCookie(r)
}

func FromContext(ctx context.Context) string {
	return logging.SessionIDFromContext(ctx)
}
