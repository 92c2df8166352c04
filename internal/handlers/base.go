// Package handlers implements the HTTP API of the edge service.
package handlers

import (
	"context"
	"net/http"

	"renda-edge/internal/auth"
	"renda-edge/internal/cms"
	"renda-edge/internal/common/httputil"
	"renda-edge/internal/common/logging"
	"renda-edge/internal/common/validation"
	"renda-edge/internal/config"
	"renda-edge/internal/leads"
	"renda-edge/internal/ratelimit"
	"renda-edge/internal/revalidation"
	"renda-edge/internal/signature"
	"renda-edge/internal/storage"
)

// Content is the CMS read API behind the page-data routes.
type Content interface {
	Home(ctx context.Context) (*cms.HomePage, error)
	Products(ctx context.Context) ([]cms.Product, error)
	Product(ctx context.Context, slug string) (*cms.Product, error)
	Associations(ctx context.Context) ([]cms.Association, error)
	Association(ctx context.Context, slug string) (*cms.Association, error)
	News(ctx context.Context, limit int) ([]cms.NewsPost, error)
	NewsPost(ctx context.Context, slug string) (*cms.NewsPost, error)
	History(ctx context.Context) (*cms.HistoryPage, error)
	Settings(ctx context.Context) (*cms.SiteSettings, error)
}

// HealthCheck reports the health of one dependency.
type HealthCheck func(ctx context.Context) error

// Deps are the collaborators of Handlers. Storage, Content, Verifier,
// Dispatcher, Auth and Config are required.
type Deps struct {
	Storage    storage.Storage
	Content    Content
	Verifier   *signature.Verifier
	Dispatcher *revalidation.Dispatcher
	Leads      leads.Publisher
	Auth       *auth.Auth
	Validator  *validation.Validator
	Config     *config.Config
	ClientIP   ratelimit.IdentityFunc
	Checks     map[string]HealthCheck
	Logger     logging.Logger
}

type Handlers struct {
	storage    storage.Storage
	content    Content
	verifier   *signature.Verifier
	dispatcher *revalidation.Dispatcher
	leads      leads.Publisher
	auth       *auth.Auth
	validator  *validation.Validator
	config     *config.Config
	clientIP   ratelimit.IdentityFunc
	checks     map[string]HealthCheck
	logger     logging.Logger
}

func New(d Deps) *Handlers {
	h := &Handlers{
		storage:    d.Storage,
		content:    d.Content,
		verifier:   d.Verifier,
		dispatcher: d.Dispatcher,
		leads:      d.Leads,
		auth:       d.Auth,
		validator:  d.Validator,
		config:     d.Config,
		clientIP:   d.ClientIP,
		checks:     d.Checks,
		logger:     d.Logger,
	}
	if h.leads == nil {
		h.leads = leads.Noop{}
	}
	if h.validator == nil {
		h.validator = validation.New()
	}
	if h.clientIP == nil {
		h.clientIP = ratelimit.RemoteAddr
	}
	if h.logger == nil {
		h.logger = logging.GetGlobalLogger()
	}
	h.logger = h.logger.WithFields(logging.String("component", "handlers"))
	return h
}

func (h *Handlers) log(r *http.Request) logging.Logger {
	return h.logger.WithContext(r.Context())
}

// decode reads a JSON body into dst and validates it.
func (h *Handlers) decode(r *http.Request, dst interface{}) error {
	if err := httputil.DecodeJSON(r, dst); err != nil {
		return err
	}
	return h.validator.Struct(dst)
}
