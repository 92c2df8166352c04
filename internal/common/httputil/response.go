// Package httputil holds the JSON response helpers shared by handlers and middleware.
package httputil

import (
	"encoding/json"
	"net/http"

	apperrors "renda-edge/internal/common/errors"
	"renda-edge/internal/common/logging"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is the body of simple success replies.
type MessageResponse struct {
	Message string `json:"message"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("Failed to encode response", logging.Err(err))
	}
}

// WriteError maps err to its status and writes only the public message.
// 5xx errors are logged with their full detail.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.WithContext(r.Context()).Error("Request failed", err,
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
		)
	}
	WriteJSON(w, status, ErrorResponse{Error: apperrors.PublicMessage(err)})
}

// DecodeJSON decodes the request body into dst, rejecting unknown trailing data.
func DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return apperrors.ValidationError("invalid JSON body").WithCause(err)
	}
	if dec.More() {
		return apperrors.ValidationError("invalid JSON body")
	}
	return nil
}
