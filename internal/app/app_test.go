package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renda-edge/internal/common/cache"
	"renda-edge/internal/config"
	"renda-edge/internal/locks"
	"renda-edge/internal/signature"
)

const webhookSecret = "whsec_app_test"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Port:                      "0",
		LogLevel:                  "error",
		LogFormat:                 "console",
		PublicBaseURL:             "https://rendadefile.org",
		DatabaseType:              "sqlite",
		DatabasePath:              filepath.Join(t.TempDir(), "renda.db"),
		RedisDB:                   "0",
		RedisPoolSize:             "5",
		SanityProjectID:           "test",
		SanityDataset:             "production",
		SanityAPIVersion:          "2024-01-01",
		WebhookSecret:             webhookSecret,
		WebhookHeader:             "sanity-webhook-signature",
		WebhookTimestampTolerance: 0,
		RateLimitEnabled:          true,
		RateLimitBackend:          "memory",
		RateLimitStrategy:         "fixed_window",
		ContactRateLimit:          2,
		ContactRateWindow:         time.Hour,
		ClickRateLimit:            30,
		ClickRateWindow:           time.Minute,
		CacheBackend:              "local",
		CacheTTL:                  time.Minute,
		JWTSecret:                 "0123456789abcdef0123456789abcdef",
		AdminUsername:             "admin",
		AdminPassword:             "s3nha-forte",
		WhatsAppNumber:            "5582999990000",
		LeadsExchange:             "renda.leads",
		AnalyticsRetention:        90 * 24 * time.Hour,
		CleanupSchedule:           "@daily",
		// warming would reach the network
		CacheWarmSchedule: "",
	}
}

func newTestApp(t *testing.T, cfg *config.Config) (*App, http.Handler) {
	t.Helper()
	require.NoError(t, cfg.Validate())
	app, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(app.Cleanup)
	return app, app.Handler()
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func webhookRequest(t *testing.T, body string) *http.Request {
	t.Helper()
	header, err := signature.Sign(signature.SanityScheme("", 0), webhookSecret, []byte(body), time.Now())
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/revalidate", bytes.NewReader([]byte(body)))
	req.Header.Set("sanity-webhook-signature", header)
	return req
}

func TestNew_LocalMode(t *testing.T) {
	app, h := newTestApp(t, testConfig(t))

	assert.Nil(t, app.RedisClient)
	assert.IsType(t, &locks.LocalManager{}, app.Locks)
	assert.NotNil(t, app.Limiters.Contact)

	n, err := app.Storage.AdminUserCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var health struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "healthy", health.Components["cms"])
	assert.NotContains(t, health.Components, "redis")
}

func TestNew_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.RedisAddress = mr.Addr()
	cfg.RateLimitBackend = "redis"
	cfg.CacheBackend = "two_tier"

	app, h := newTestApp(t, cfg)
	require.NotNil(t, app.RedisClient)
	assert.IsType(t, &locks.RedsyncManager{}, app.Locks)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"healthy"`)

	// counters live in Redis
	for i := 0; i < 3; i++ {
		serve(h, httptest.NewRequest(http.MethodPost, "/api/contact", bytes.NewReader([]byte(`{}`))))
	}
	keys, err := app.RedisClient.Raw().Keys(context.Background(), "renda:ratelimit:*").Result()
	require.NoError(t, err)
	assert.NotEmpty(t, keys)
}

func TestRoutes_WebhookInvalidatesPageCache(t *testing.T) {
	app, h := newTestApp(t, testConfig(t))
	ctx := context.Background()

	body := []byte(`[{"slug":"x","title":"Toalha"}]`)
	require.NoError(t, app.Cache.Set(ctx, cache.PathKey("/catalog"), body, 0, cache.PathTag("/catalog"), "products"))
	require.NoError(t, app.Cache.Set(ctx, cache.PathKey("/news"), []byte(`[]`), 0, cache.PathTag("/news"), "news"))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/catalog", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, string(body), rec.Body.String())

	rec = serve(h, webhookRequest(t, `{"_type":"product","_id":"p1","slug":{"current":"x"}}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, ok := app.Cache.Get(ctx, cache.PathKey("/catalog"))
	assert.False(t, ok)
	_, ok = app.Cache.Get(ctx, cache.PathKey("/news"))
	assert.True(t, ok)
}

func TestRoutes_WebhookReplayOfRecordedDelivery(t *testing.T) {
	app, h := newTestApp(t, testConfig(t))
	ctx := context.Background()

	body := []byte(`{"_type":"news","_id":"n1","operation":"update","slug":{"current":"feira"}}`)
	header, err := signature.Sign(signature.SanityScheme("", 0), webhookSecret, body, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		require.NoError(t, app.Cache.Set(ctx, cache.PathKey("/news"), []byte(`[]`), 0, cache.PathTag("/news"), "news"))

		req := httptest.NewRequest(http.MethodPost, "/api/revalidate", bytes.NewReader(body))
		req.Header.Set("sanity-webhook-signature", header)
		rec := serve(h, req)
		require.Equal(t, http.StatusOK, rec.Code, "delivery %d: %s", i+1, rec.Body.String())

		_, ok := app.Cache.Get(ctx, cache.PathKey("/news"))
		assert.False(t, ok)
	}
}

func TestRoutes_WebhookRejectsBadSignature(t *testing.T) {
	app, h := newTestApp(t, testConfig(t))
	ctx := context.Background()
	require.NoError(t, app.Cache.Set(ctx, cache.PathKey("/catalog"), []byte(`[]`), 0, cache.PathTag("/catalog"), "products"))

	req := webhookRequest(t, `{"_type":"product","_id":"p1"}`)
	req.Header.Set("sanity-webhook-signature", "t=1,v1=forged")
	rec := serve(h, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	_, ok := app.Cache.Get(ctx, cache.PathKey("/catalog"))
	assert.True(t, ok)
}

func TestRoutes_ContactRateLimit(t *testing.T) {
	app, h := newTestApp(t, testConfig(t))
	contact := `{"name":"Maria","email":"maria@example.com","message":"Quero uma toalha de mesa."}`

	for i := 0; i < 2; i++ {
		rec := serve(h, httptest.NewRequest(http.MethodPost, "/api/contact", bytes.NewReader([]byte(contact))))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/api/contact", bytes.NewReader([]byte(contact))))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"too many requests"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	_, total, err := app.Storage.ListContacts(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestRoutes_RateLimitDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimitEnabled = false
	app, h := newTestApp(t, cfg)
	assert.Nil(t, app.Limiters.Contact)

	contact := `{"name":"Maria","email":"maria@example.com","message":"Quero uma toalha de mesa."}`
	for i := 0; i < 3; i++ {
		rec := serve(h, httptest.NewRequest(http.MethodPost, "/api/contact", bytes.NewReader([]byte(contact))))
		require.Equal(t, http.StatusCreated, rec.Code)
	}
}

func TestRoutes_AdminLogin(t *testing.T) {
	_, h := newTestApp(t, testConfig(t))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/admin/analytics", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	login := `{"username":"admin","password":"s3nha-forte"}`
	rec = serve(h, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader([]byte(login))))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/analytics?days=7", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	rec = serve(h, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoutes_SessionCookie(t *testing.T) {
	_, h := newTestApp(t, testConfig(t))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/favorites", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var found bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == "renda_session" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRoutes_Ops(t *testing.T) {
	_, h := newTestApp(t, testConfig(t))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunServer_StartsJobs(t *testing.T) {
	app, _ := newTestApp(t, testConfig(t))

	srv := app.RunServer()
	require.NotNil(t, srv)
	next, ok := app.Scheduler.Next("analytics-purge")
	require.True(t, ok)
	assert.True(t, next.After(time.Now()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, app.Shutdown(ctx))
}
