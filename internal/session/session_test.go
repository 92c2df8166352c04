package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware(t *testing.T) {
	var seen string
	h := NewManager(true).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ID(r)
	}))

	t.Run("issues a cookie for new visitors", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		c := cookies[0]
		assert.Equal(t, CookieName, c.Name)
		assert.Equal(t, seen, c.Value)
		assert.True(t, c.HttpOnly)
		assert.True(t, c.Secure)
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
		_, err := uuid.Parse(c.Value)
		assert.NoError(t, err)
	})

	t.Run("keeps an existing session", func(t *testing.T) {
		id := uuid.NewString()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: id})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Empty(t, rec.Result().Cookies())
		assert.Equal(t, id, seen)
	})

	t.Run("replaces a forged cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: "../../admin"})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Len(t, rec.Result().Cookies(), 1)
		assert.NotEqual(t, "../../admin", seen)
	})
}

func TestIDWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, ID(req))

	id := uuid.NewString()
	req.AddCookie(&http.Cookie{Name: CookieName, Value: id})
	assert.Equal(t, id, ID(req))
}
