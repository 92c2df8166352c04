package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renda-edge/internal/common/httputil"
	"renda-edge/internal/signature"
)

func signedRequest(t *testing.T, secret string, body []byte) *http.Request {
	t.Helper()
	header, err := signature.Sign(signature.SanityScheme(testHeader, 0), secret, body, time.Now())
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/revalidate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(testHeader, header)
	return req
}

func TestRevalidate_Product(t *testing.T) {
	env := newTestEnv(t, testSecret)
	body := []byte(`{"_type":"product","_id":"p1","operation":"update","slug":{"current":"x"}}`)

	rec := httptest.NewRecorder()
	env.h.Revalidate(rec, signedRequest(t, testSecret, body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"/catalog", "/", "/product/x"}, env.invalidator.Paths())
	assert.Equal(t, []string{"products"}, env.invalidator.Tags())

	var resp RevalidateResponse
	decodeBody(t, rec, &resp)
	assert.NotEmpty(t, resp.Message)
	assert.Equal(t, []string{"products"}, resp.Tags)
}

func TestRevalidate_TypeTable(t *testing.T) {
	tests := []struct {
		body  string
		paths []string
		tags  []string
	}{
		{`{"_type":"association","_id":"a1","slug":{"current":"pontal"}}`, []string{"/associations", "/", "/association/pontal"}, []string{"associations"}},
		{`{"_type":"news","_id":"n1","slug":{"current":"feira"}}`, []string{"/news", "/", "/news/feira"}, []string{"news"}},
		{`{"_type":"settings","_id":"siteSettings"}`, []string{"/"}, []string{"settings"}},
		{`{"_type":"product","_id":"p1"}`, []string{"/catalog", "/"}, []string{"products"}},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			env := newTestEnv(t, testSecret)
			rec := httptest.NewRecorder()
			env.h.Revalidate(rec, signedRequest(t, testSecret, []byte(tt.body)))

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.paths, env.invalidator.Paths())
			assert.Equal(t, tt.tags, env.invalidator.Tags())
		})
	}
}

func TestRevalidate_InvalidSignature(t *testing.T) {
	env := newTestEnv(t, testSecret)
	body := []byte(`{"_type":"product","_id":"p1","slug":{"current":"x"}}`)

	rec := httptest.NewRecorder()
	env.h.Revalidate(rec, signedRequest(t, "some-other-secret", body))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, env.invalidator.Calls())

	var resp httputil.ErrorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "invalid signature", resp.Error)
}

func TestRevalidate_MissingSignature(t *testing.T) {
	env := newTestEnv(t, testSecret)
	req := httptest.NewRequest(http.MethodPost, "/api/revalidate",
		bytes.NewReader([]byte(`{"_type":"product","_id":"p1"}`)))

	rec := httptest.NewRecorder()
	env.h.Revalidate(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, env.invalidator.Calls())
}

func TestRevalidate_TamperedBody(t *testing.T) {
	env := newTestEnv(t, testSecret)
	req := signedRequest(t, testSecret, []byte(`{"_type":"news","_id":"n1"}`))
	req.Body = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{"_type":"product","_id":"p1"}`))).Body

	rec := httptest.NewRecorder()
	env.h.Revalidate(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, env.invalidator.Calls())
}

func TestRevalidate_UnknownType(t *testing.T) {
	env := newTestEnv(t, testSecret)
	body := []byte(`{"_type":"unknown","_id":"u1"}`)

	rec := httptest.NewRecorder()
	env.h.Revalidate(rec, signedRequest(t, testSecret, body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, env.invalidator.Calls())

	var resp RevalidateResponse
	decodeBody(t, rec, &resp)
	assert.Contains(t, resp.Message, "unknown")
}

func TestRevalidate_Replay(t *testing.T) {
	env := newTestEnv(t, testSecret)
	body := []byte(`{"_type":"product","_id":"p1","operation":"update","slug":{"current":"x"}}`)
	// One delivery, recorded an hour ago and sent again verbatim.
	header, err := signature.Sign(signature.SanityScheme(testHeader, 0), testSecret, body, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/revalidate", bytes.NewReader(body))
		req.Header.Set(testHeader, header)
		rec := httptest.NewRecorder()
		env.h.Revalidate(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	once := []string{"/catalog", "/", "/product/x"}
	assert.Equal(t, append(append([]string{}, once...), once...), env.invalidator.Paths())
	assert.Equal(t, []string{"products", "products"}, env.invalidator.Tags())
}

func TestRevalidate_SecretNotConfigured(t *testing.T) {
	env := newTestEnv(t, "")
	body := []byte(`{"_type":"product","_id":"p1"}`)

	rec := httptest.NewRecorder()
	env.h.Revalidate(rec, signedRequest(t, testSecret, body))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Zero(t, env.invalidator.Calls())

	var resp httputil.ErrorResponse
	decodeBody(t, rec, &resp)
	assert.NotEmpty(t, resp.Error)
}

func TestRevalidate_MalformedBody(t *testing.T) {
	env := newTestEnv(t, testSecret)

	for _, body := range []string{`{not json`, `{"_id":"p1"}`} {
		rec := httptest.NewRecorder()
		env.h.Revalidate(rec, signedRequest(t, testSecret, []byte(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Zero(t, env.invalidator.Calls())
}
