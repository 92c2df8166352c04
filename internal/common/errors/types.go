// Package errors defines the typed application errors returned by the edge service.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ErrorType classifies an AppError and decides its HTTP status.
type ErrorType string

const (
	ErrTypeValidation  ErrorType = "validation"
	ErrTypeConfig      ErrorType = "config"
	ErrTypeAuth        ErrorType = "authentication"
	ErrTypeNotFound    ErrorType = "not_found"
	ErrTypeInternal    ErrorType = "internal"
	ErrTypeRateLimit   ErrorType = "rate_limit"
	ErrTypeUnavailable ErrorType = "unavailable"
	ErrTypeConflict    ErrorType = "conflict"
)

// AppError is a structured application error. Message is safe to show
// clients; Cause and Context are for server-side logs only.
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Code != "" {
		parts = append(parts, "code="+e.Code)
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		kv := make([]string, 0, len(keys))
		for _, k := range keys {
			kv = append(kv, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(kv, ", ")))
	}

	return strings.Join(parts, ": ")
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds a log-only key to the error.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func ValidationError(msg string) *AppError {
	return &AppError{Type: ErrTypeValidation, Message: msg}
}

func ConfigError(msg string) *AppError {
	return &AppError{Type: ErrTypeConfig, Message: msg}
}

func AuthError(msg string) *AppError {
	return &AppError{Type: ErrTypeAuth, Message: msg}
}

// NotFoundError reports a missing resource, e.g. NotFoundError("product").
func NotFoundError(resource string) *AppError {
	return &AppError{Type: ErrTypeNotFound, Message: fmt.Sprintf("%s not found", resource)}
}

func InternalError(msg string, cause error) *AppError {
	return &AppError{Type: ErrTypeInternal, Message: msg, Cause: cause}
}

func RateLimitError(resource string) *AppError {
	return &AppError{Type: ErrTypeRateLimit, Message: fmt.Sprintf("rate limit exceeded for %s", resource)}
}

// UnavailableError reports a dependency that cannot currently serve the request.
func UnavailableError(msg string, cause error) *AppError {
	return &AppError{Type: ErrTypeUnavailable, Message: msg, Cause: cause}
}

func ConflictError(msg string) *AppError {
	return &AppError{Type: ErrTypeConflict, Message: msg}
}

// IsType reports whether any error in err's chain is an AppError of errType.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.Type == errType
}

// GetType returns the AppError type in err's chain, ErrTypeInternal for
// foreign errors and "" for nil.
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return ErrTypeInternal
	}
	return appErr.Type
}

// HTTPStatus maps err to the response status code.
func HTTPStatus(err error) int {
	switch GetType(err) {
	case "":
		return http.StatusOK
	case ErrTypeValidation:
		return http.StatusBadRequest
	case ErrTypeAuth:
		return http.StatusUnauthorized
	case ErrTypeNotFound:
		return http.StatusNotFound
	case ErrTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrTypeUnavailable:
		return http.StatusServiceUnavailable
	case ErrTypeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the client-safe message for err. Internal and
// foreign errors collapse to a generic text.
func PublicMessage(err error) string {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return "internal server error"
	}
	switch appErr.Type {
	case ErrTypeInternal:
		return "internal server error"
	case ErrTypeConfig:
		return "server misconfigured"
	default:
		return appErr.Message
	}
}
