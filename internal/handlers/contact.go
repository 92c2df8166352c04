package handlers

import (
	"net/http"

	"renda-edge/internal/common/httputil"
	"renda-edge/internal/common/logging"
	"renda-edge/internal/session"
	"renda-edge/internal/storage"
)

// ContactRequest is the contact form payload.
type ContactRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Email       string `json:"email" validate:"required,email,max=254"`
	Phone       string `json:"phone" validate:"omitempty,phone"`
	Subject     string `json:"subject" validate:"max=200"`
	Message     string `json:"message" validate:"required,min=10,max=5000"`
	ProductSlug string `json:"productSlug" validate:"omitempty,slug,max=200"`
}

type ContactResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Contact stores a contact form submission
// @Summary Submit contact form
// @Description Validates and stores a contact message, then notifies the cooperative. Rate limited per client.
// @Tags contact
// @Accept json
// @Produce json
// @Param request body ContactRequest true "Contact message"
// @Success 201 {object} ContactResponse
// @Failure 400 {object} httputil.ErrorResponse
// @Failure 429 {object} httputil.ErrorResponse
// @Router /api/contact [post]
func (h *Handlers) Contact(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	req.Name = h.validator.Sanitize(req.Name)
	req.Email = h.validator.Sanitize(req.Email)
	req.Phone = h.validator.Sanitize(req.Phone)
	req.Subject = h.validator.Sanitize(req.Subject)
	req.Message = h.validator.Sanitize(req.Message)
	req.ProductSlug = h.validator.Sanitize(req.ProductSlug)

	if err := h.validator.Struct(req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	ip, _ := h.clientIP(r)
	msg := &storage.ContactMessage{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Subject:     req.Subject,
		Message:     req.Message,
		ProductSlug: req.ProductSlug,
		SessionID:   session.ID(r),
		IP:          ip,
	}
	if err := h.storage.CreateContact(r.Context(), msg); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	// the message is stored; a failed notification must not fail the request
	if err := h.leads.PublishContact(r.Context(), msg); err != nil {
		h.log(r).Error("Failed to publish contact notification", err,
			logging.String("contact_id", msg.ID),
		)
	}

	h.log(r).Info("Contact message received",
		logging.String("contact_id", msg.ID),
		logging.String("product", msg.ProductSlug),
	)
	httputil.WriteJSON(w, http.StatusCreated, ContactResponse{
		ID:      msg.ID,
		Message: "Mensagem recebida. Obrigado pelo contato!",
	})
}
