package handlers

import (
	"fmt"
	"net/http"

	apperrors "renda-edge/internal/common/errors"
	"renda-edge/internal/common/httputil"
	"renda-edge/internal/common/logging"
	"renda-edge/internal/metrics"
	"renda-edge/internal/revalidation"
	"renda-edge/internal/signature"
)

// RevalidateResponse acknowledges a processed webhook.
type RevalidateResponse struct {
	Message string   `json:"message"`
	Paths   []string `json:"paths,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	Failed  int      `json:"failed,omitempty"`
}

// Revalidate handles CMS change notifications
// @Summary Revalidate cached pages
// @Description Verifies the CMS webhook signature and invalidates the cached paths and tags of the changed document type
// @Tags webhooks
// @Accept json
// @Produce json
// @Param sanity-webhook-signature header string true "Webhook signature"
// @Param payload body object true "CMS document {_type, _id, operation, slug}"
// @Success 200 {object} RevalidateResponse
// @Failure 400 {object} httputil.ErrorResponse
// @Failure 401 {object} httputil.ErrorResponse
// @Failure 500 {object} httputil.ErrorResponse
// @Router /api/revalidate [post]
func (h *Handlers) Revalidate(w http.ResponseWriter, r *http.Request) {
	logger := h.log(r)

	// nothing is read before we know we can authenticate it
	if !h.verifier.Configured() {
		metrics.WebhookRequests.WithLabelValues("", "misconfigured").Inc()
		logger.Error("Webhook received but no secret is configured", nil)
		httputil.WriteError(w, r, apperrors.ConfigError("webhook secret not configured"))
		return
	}

	body, err := signature.ReadBody(r)
	if err != nil {
		metrics.WebhookRequests.WithLabelValues("", "invalid").Inc()
		httputil.WriteError(w, r, err)
		return
	}

	if err := h.verifier.Verify(r.Header, body); err != nil {
		metrics.WebhookRequests.WithLabelValues("", "unauthorized").Inc()
		httputil.WriteError(w, r, err)
		return
	}

	event, err := revalidation.ParseEvent(body, r.Header)
	if err != nil {
		metrics.WebhookRequests.WithLabelValues("", "invalid").Inc()
		logger.Warn("Malformed webhook payload", logging.Err(err))
		httputil.WriteError(w, r, err)
		return
	}

	logger = logger.WithFields(
		logging.String("type", event.Type),
		logging.String("id", event.ID),
		logging.String("operation", event.Operation),
	)

	if !revalidation.Known(event.Type) {
		metrics.WebhookRequests.WithLabelValues("unknown", "ignored").Inc()
		h.dispatcher.Dispatch(r.Context(), event)
		httputil.WriteJSON(w, http.StatusOK, RevalidateResponse{
			Message: fmt.Sprintf("No revalidation for type %q", event.Type),
		})
		return
	}

	result := h.dispatcher.Dispatch(r.Context(), event)

	outcome := "ok"
	if len(result.Failures) > 0 {
		outcome = "partial"
	}
	metrics.WebhookRequests.WithLabelValues(event.Type, outcome).Inc()
	logger.Info("Webhook processed",
		logging.Strings("paths", result.Targets.Paths),
		logging.Strings("tags", result.Targets.Tags),
		logging.Int("failures", len(result.Failures)),
	)

	httputil.WriteJSON(w, http.StatusOK, RevalidateResponse{
		Message: fmt.Sprintf("Revalidated %s", event.Type),
		Paths:   result.Targets.Paths,
		Tags:    result.Targets.Tags,
		Failed:  len(result.Failures),
	})
}
