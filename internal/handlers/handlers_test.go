package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"renda-edge/internal/auth"
	"renda-edge/internal/cms"
	apperrors "renda-edge/internal/common/errors"
	"renda-edge/internal/config"
	"renda-edge/internal/revalidation"
	"renda-edge/internal/signature"
	"renda-edge/internal/testutil"
)

const (
	testSecret    = "whsec_test_secret"
	testJWTSecret = "0123456789abcdef0123456789abcdef"
	testHeader    = "sanity-webhook-signature"
)

// fakeContent serves CMS documents from maps.
type fakeContent struct {
	products     map[string]cms.Product
	associations map[string]cms.Association
	news         map[string]cms.NewsPost
	settings     *cms.SiteSettings
	err          error
	calls        int
}

func newFakeContent() *fakeContent {
	return &fakeContent{
		products: map[string]cms.Product{
			"toalha-flor": {ID: "p1", Title: "Toalha Flor", Slug: "toalha-flor", Featured: true},
			"caminho-mesa": {ID: "p2", Title: "Caminho de Mesa", Slug: "caminho-mesa"},
		},
		associations: map[string]cms.Association{
			"pontal": {ID: "a1", Name: "Associação do Pontal", Slug: "pontal"},
		},
		news: map[string]cms.NewsPost{
			"feira": {ID: "n1", Title: "Feira de Artesanato", Slug: "feira", Body: "<p>Texto</p>"},
		},
		settings: &cms.SiteSettings{
			Title:           "Renda de Filé",
			WhatsAppNumber:  "+55 (82) 98888-7777",
			WhatsAppMessage: "Olá! Quero saber mais sobre",
		},
	}
}

func (f *fakeContent) Home(context.Context) (*cms.HomePage, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &cms.HomePage{Settings: *f.settings, Featured: []cms.Product{f.products["toalha-flor"]}}, nil
}

func (f *fakeContent) Products(context.Context) ([]cms.Product, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []cms.Product{f.products["caminho-mesa"], f.products["toalha-flor"]}, nil
}

func (f *fakeContent) Product(_ context.Context, slug string) (*cms.Product, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.products[slug]
	if !ok {
		return nil, apperrors.NotFoundError("product")
	}
	return &p, nil
}

func (f *fakeContent) Associations(context.Context) ([]cms.Association, error) {
	f.calls++
	return []cms.Association{f.associations["pontal"]}, f.err
}

func (f *fakeContent) Association(_ context.Context, slug string) (*cms.Association, error) {
	f.calls++
	a, ok := f.associations[slug]
	if !ok {
		return nil, apperrors.NotFoundError("association")
	}
	return &a, nil
}

func (f *fakeContent) News(context.Context, int) ([]cms.NewsPost, error) {
	f.calls++
	return []cms.NewsPost{f.news["feira"]}, f.err
}

func (f *fakeContent) NewsPost(_ context.Context, slug string) (*cms.NewsPost, error) {
	f.calls++
	n, ok := f.news[slug]
	if !ok {
		return nil, apperrors.NotFoundError("news post")
	}
	return &n, nil
}

func (f *fakeContent) History(context.Context) (*cms.HistoryPage, error) {
	f.calls++
	return &cms.HistoryPage{Title: f.settings.Title, History: "<p>Desde 1900</p>"}, f.err
}

func (f *fakeContent) Settings(context.Context) (*cms.SiteSettings, error) {
	if f.settings == nil {
		return nil, apperrors.NotFoundError("settings")
	}
	return f.settings, nil
}

type testEnv struct {
	h           *Handlers
	storage     *testutil.MockStorage
	content     *fakeContent
	invalidator *testutil.RecordingInvalidator
	publisher   *testutil.RecordingPublisher
	auth        *auth.Auth
}

func newTestEnv(t *testing.T, webhookSecret string) *testEnv {
	t.Helper()

	store := testutil.NewMockStorage()
	content := newFakeContent()
	inv := &testutil.RecordingInvalidator{}
	pub := &testutil.RecordingPublisher{}

	verifier, err := signature.NewVerifier(webhookSecret, nil, signature.SanityScheme(testHeader, 0))
	require.NoError(t, err)

	a, err := auth.New(store, testJWTSecret, false, nil)
	require.NoError(t, err)

	h := New(Deps{
		Storage:    store,
		Content:    content,
		Verifier:   verifier,
		Dispatcher: revalidation.NewDispatcher(inv, nil),
		Leads:      pub,
		Auth:       a,
		Config: &config.Config{
			PublicBaseURL:  "https://rendadefile.org",
			WhatsAppNumber: "+55 82 99999-0000",
		},
	})
	return &testEnv{h: h, storage: store, content: content, invalidator: inv, publisher: pub, auth: a}
}

func jsonRequest(t *testing.T, method, target string, v interface{}) *http.Request {
	t.Helper()
	var body bytes.Buffer
	if v != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(v))
	}
	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}
