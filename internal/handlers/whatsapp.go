package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"github.com/gorilla/mux"

	apperrors "renda-edge/internal/common/errors"
	"renda-edge/internal/common/httputil"
	"renda-edge/internal/common/logging"
	"renda-edge/internal/session"
	"renda-edge/internal/storage"
)

const defaultWhatsAppMessage = "Olá! Tenho interesse na peça"

// WhatsAppClickRequest identifies the product whose WhatsApp button was clicked.
type WhatsAppClickRequest struct {
	ProductSlug string `json:"productSlug" validate:"required,slug,max=200"`
}

type WhatsAppLinkResponse struct {
	URL string `json:"url"`
}

// WhatsAppLink builds a wa.me link whose prefilled text names the product
// and links to its page.
func WhatsAppLink(number, prefix, productTitle, productURL string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, number)
	if digits == "" {
		return "", apperrors.ConfigError("WhatsApp number not configured")
	}
	if prefix == "" {
		prefix = defaultWhatsAppMessage
	}
	text := prefix + " \"" + productTitle + "\": " + productURL
	return "https://wa.me/" + digits + "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20"), nil
}

// productURL is the public page of a product.
func (h *Handlers) productURL(slug string) string {
	return strings.TrimRight(h.config.PublicBaseURL, "/") + "/product/" + url.PathEscape(slug)
}

// trackClick records a click on slug and returns the WhatsApp link for it.
func (h *Handlers) trackClick(ctx context.Context, r *http.Request, slug, source string) (string, error) {
	product, err := h.content.Product(ctx, slug)
	if err != nil {
		return "", err
	}

	number, prefix := h.config.WhatsAppNumber, ""
	if settings, err := h.content.Settings(ctx); err == nil {
		if settings.WhatsAppNumber != "" {
			number = settings.WhatsAppNumber
		}
		prefix = settings.WhatsAppMessage
	} else if !apperrors.IsType(err, apperrors.ErrTypeNotFound) {
		h.log(r).Warn("Could not load site settings, using configured WhatsApp number", logging.Err(err))
	}

	link, err := WhatsAppLink(number, prefix, product.Title, h.productURL(product.Slug))
	if err != nil {
		return "", err
	}

	click := &storage.WhatsAppClick{
		ProductSlug:  product.Slug,
		ProductTitle: product.Title,
		SessionID:    session.ID(r),
		Source:       source,
		UserAgent:    r.UserAgent(),
		Referrer:     r.Referer(),
	}
	// losing a click is better than losing the customer
	if err := h.storage.RecordClick(ctx, click); err != nil {
		h.log(r).Error("Failed to record WhatsApp click", err, logging.String("product", slug))
	}
	return link, nil
}

// WhatsAppClick records a WhatsApp button click
// @Summary Track WhatsApp click
// @Description Records a click on a product's WhatsApp button and returns the wa.me link. Rate limited per client.
// @Tags whatsapp
// @Accept json
// @Produce json
// @Param request body WhatsAppClickRequest true "Product"
// @Success 200 {object} WhatsAppLinkResponse
// @Failure 400 {object} httputil.ErrorResponse
// @Failure 404 {object} httputil.ErrorResponse
// @Failure 429 {object} httputil.ErrorResponse
// @Router /api/whatsapp/click [post]
func (h *Handlers) WhatsAppClick(w http.ResponseWriter, r *http.Request) {
	var req WhatsAppClickRequest
	if err := h.decode(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	link, err := h.trackClick(r.Context(), r, req.ProductSlug, "button")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, WhatsAppLinkResponse{URL: link})
}

// WhatsAppRedirect records a click and redirects to WhatsApp
// @Summary Redirect to WhatsApp
// @Description Records a click for the product and redirects to its wa.me link. Rate limited per client.
// @Tags whatsapp
// @Param slug path string true "Product slug"
// @Success 302
// @Failure 404 {object} httputil.ErrorResponse
// @Router /go/whatsapp/{slug} [get]
func (h *Handlers) WhatsAppRedirect(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	if err := h.validator.Var(slug, "required,slug"); err != nil {
		httputil.WriteError(w, r, apperrors.NotFoundError("product"))
		return
	}
	link, err := h.trackClick(r.Context(), r, slug, "redirect")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	http.Redirect(w, r, link, http.StatusFound)
}
