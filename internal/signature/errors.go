package signature

import (
	stderrors "errors"

	apperrors "renda-edge/internal/common/errors"
)

var (
	ErrSecretNotConfigured = stderrors.New("webhook secret not configured")
	ErrMissingSignature    = stderrors.New("missing signature header")
	ErrInvalidSignature    = stderrors.New("invalid signature")
	ErrTimestampOutOfRange = stderrors.New("signature timestamp outside tolerance")
)

// asAppError wraps a sentinel in the AppError type the HTTP layer maps to a status.
// Clients only ever see the generic messages below.
func asAppError(err error, header string) error {
	switch {
	case stderrors.Is(err, ErrSecretNotConfigured):
		return apperrors.ConfigError("webhook secret not configured").WithCause(err)
	case stderrors.Is(err, ErrMissingSignature):
		return apperrors.AuthError("missing signature").WithCause(err).WithContext("header", header)
	default:
		return apperrors.AuthError("invalid signature").WithCause(err).WithContext("header", header)
	}
}
