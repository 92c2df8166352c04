package signature

import (
	"fmt"
	"time"
)

// Scheme describes one accepted signature layout.
type Scheme struct {
	// Header carrying the signature, matched case-insensitively.
	Header string `json:"header"`

	// Format of the header value, e.g. "t=${timestamp},v1=${signature}".
	Format string `json:"format"`

	// Algorithm is hmac-sha1, hmac-sha256 or hmac-sha512.
	Algorithm string `json:"algorithm"`

	// Encoding of the digest: hex, base64, base64url or auto.
	Encoding string `json:"encoding"`

	// Input is the template of the signed bytes, e.g. "${timestamp}.${body}".
	Input string `json:"input"`

	// Tolerance bounds the age of ${timestamp}. Zero disables the check.
	Tolerance time.Duration `json:"tolerance"`
}

// SanityScheme returns the layout used by Sanity GROQ-powered webhooks.
func SanityScheme(header string, tolerance time.Duration) Scheme {
	if header == "" {
		header = "sanity-webhook-signature"
	}
	return Scheme{
		Header:    header,
		Format:    "t=${timestamp},v1=${signature}",
		Algorithm: "hmac-sha256",
		Encoding:  "base64url",
		Input:     "${timestamp}.${body}",
		Tolerance: tolerance,
	}
}

// PlainScheme returns a layout where the header holds a bare HMAC-SHA256
// digest of the body, hex or base64 encoded.
func PlainScheme(header string) Scheme {
	return Scheme{
		Header:    header,
		Format:    "${signature}",
		Algorithm: "hmac-sha256",
		Encoding:  "auto",
		Input:     "${body}",
	}
}

func (s Scheme) validate() error {
	if s.Header == "" {
		return fmt.Errorf("signature header is required")
	}
	switch s.Algorithm {
	case "hmac-sha1", "hmac-sha256", "hmac-sha512":
	default:
		return fmt.Errorf("unsupported algorithm: %s", s.Algorithm)
	}
	switch s.Encoding {
	case "hex", "base64", "base64url", "auto":
	default:
		return fmt.Errorf("unsupported encoding: %s", s.Encoding)
	}
	if s.Tolerance < 0 {
		return fmt.Errorf("tolerance must not be negative")
	}
	return nil
}
