package cache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPageMiddleware(t *testing.T) {
	store := NewLocalStore(time.Minute, time.Minute)
	calls := 0
	page := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"products":[]}`))
	})
	h := PageMiddleware(store, time.Minute, StaticTags("products"))(page)

	get := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	first := get("/catalog")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := get("/catalog")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"products":[]}`, second.Body.String())
	assert.Equal(t, 1, calls)

	store.InvalidateTag(context.Background(), "products")
	assert.Equal(t, "MISS", get("/catalog").Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)

	store.InvalidatePath(context.Background(), "/catalog")
	get("/catalog")
	assert.Equal(t, 3, calls)
}

func TestPageMiddleware_SkipsErrorsAndWrites(t *testing.T) {
	store := NewLocalStore(time.Minute, time.Minute)
	calls := 0
	h := PageMiddleware(store, time.Minute, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"error":"product not found"}`, http.StatusNotFound)
	}))

	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/product/missing", nil))
	}
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/product/missing", nil))
	assert.Equal(t, 3, calls)
}
