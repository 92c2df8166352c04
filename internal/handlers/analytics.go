package handlers

import (
	"net/http"
	"strconv"
	"time"

	apperrors "renda-edge/internal/common/errors"
	"renda-edge/internal/common/httputil"
	"renda-edge/internal/common/logging"
	"renda-edge/internal/leads"
	"renda-edge/internal/session"
	"renda-edge/internal/storage"
)

const (
	defaultAnalyticsDays = 30
	maxAnalyticsDays     = 365
	analyticsTopN        = 10
	defaultContactsLimit = 50
	maxContactsLimit     = 200
)

// PageViewRequest reports one page view.
type PageViewRequest struct {
	Path     string `json:"path" validate:"required,sitepath,max=500"`
	Referrer string `json:"referrer" validate:"max=1000"`
}

// PageView records a page view
// @Summary Record page view
// @Description Records a page view for the current visitor session. Rate limited per client.
// @Tags analytics
// @Accept json
// @Param request body PageViewRequest true "Page view"
// @Success 204
// @Failure 400 {object} httputil.ErrorResponse
// @Failure 429 {object} httputil.ErrorResponse
// @Router /api/analytics/pageview [post]
func (h *Handlers) PageView(w http.ResponseWriter, r *http.Request) {
	var req PageViewRequest
	if err := h.decode(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	view := &storage.PageView{
		Path:      req.Path,
		SessionID: session.ID(r),
		Referrer:  req.Referrer,
		UserAgent: r.UserAgent(),
	}
	if err := h.storage.RecordPageView(r.Context(), view); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// queryInt reads a positive integer query parameter, falling back to def
// and capping at max.
func queryInt(r *http.Request, name string, def, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.ValidationError(name + " must be a non-negative integer")
	}
	if n == 0 {
		return def, nil
	}
	if n > max {
		n = max
	}
	return n, nil
}

// AdminAnalytics returns the analytics summary
// @Summary Analytics summary
// @Description Page views, WhatsApp clicks, contacts and favorites over the last N days
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param days query int false "Days to cover (default 30, max 365)"
// @Success 200 {object} storage.AnalyticsSummary
// @Failure 401 {object} httputil.ErrorResponse
// @Router /api/admin/analytics [get]
func (h *Handlers) AdminAnalytics(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", defaultAnalyticsDays, maxAnalyticsDays)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	summary, err := h.storage.AnalyticsSummary(r.Context(), since, analyticsTopN)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

type ContactsResponse struct {
	Contacts []*storage.ContactMessage `json:"contacts"`
	Total    int                       `json:"total"`
	Limit    int                       `json:"limit"`
	Offset   int                       `json:"offset"`
}

// AdminContacts lists contact messages
// @Summary List contact messages
// @Description Contact messages, newest first
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (default 50, max 200)"
// @Param offset query int false "Offset"
// @Success 200 {object} ContactsResponse
// @Failure 401 {object} httputil.ErrorResponse
// @Router /api/admin/contacts [get]
func (h *Handlers) AdminContacts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultContactsLimit, maxContactsLimit)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0, 1<<30)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	contacts, total, err := h.storage.ListContacts(r.Context(), limit, offset)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if contacts == nil {
		contacts = []*storage.ContactMessage{}
	}
	httputil.WriteJSON(w, http.StatusOK, ContactsResponse{
		Contacts: contacts,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	})
}

// AdminContactsVCF exports contacts as vCards
// @Summary Export contacts
// @Description Every contact message as a vCard 4.0 file
// @Tags admin
// @Produce text/vcard
// @Security BearerAuth
// @Success 200 {string} string "vCard file"
// @Failure 401 {object} httputil.ErrorResponse
// @Router /api/admin/contacts.vcf [get]
func (h *Handlers) AdminContactsVCF(w http.ResponseWriter, r *http.Request) {
	var all []*storage.ContactMessage
	for offset := 0; ; offset += maxContactsLimit {
		page, total, err := h.storage.ListContacts(r.Context(), maxContactsLimit, offset)
		if err != nil {
			httputil.WriteError(w, r, err)
			return
		}
		all = append(all, page...)
		if len(page) == 0 || offset+len(page) >= total {
			break
		}
	}

	w.Header().Set("Content-Type", "text/vcard; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="contatos.vcf"`)
	w.WriteHeader(http.StatusOK)
	if err := leads.WriteVCards(w, all); err != nil {
		h.log(r).Error("Failed to write vCard export", err, logging.Int("contacts", len(all)))
	}
}
