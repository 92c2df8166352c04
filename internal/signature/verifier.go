package signature

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	apperrors "renda-edge/internal/common/errors"
	"renda-edge/internal/common/logging"
)

// MaxBodySize caps webhook payloads read by ReadBody.
const MaxBodySize = 1 << 20

var placeholderPattern = regexp.MustCompile(`\\\$\\\{(\w+)\\\}`)

type compiledScheme struct {
	Scheme
	pattern *regexp.Regexp
	vars    []string
}

// Verifier checks webhook signatures against a shared secret.
type Verifier struct {
	secret  []byte
	schemes []compiledScheme
	logger  logging.Logger
	now     func() time.Time
}

// NewVerifier compiles the schemes. An empty secret is accepted here and
// reported by Verify on every call.
func NewVerifier(secret string, logger logging.Logger, schemes ...Scheme) (*Verifier, error) {
	if len(schemes) == 0 {
		return nil, fmt.Errorf("at least one signature scheme is required")
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	v := &Verifier{
		secret: []byte(secret),
		logger: logger.WithFields(logging.String("component", "signature")),
		now:    time.Now,
	}
	for _, s := range schemes {
		if err := s.validate(); err != nil {
			return nil, err
		}
		cs, err := compile(s)
		if err != nil {
			return nil, err
		}
		v.schemes = append(v.schemes, cs)
	}
	return v, nil
}

// compile turns a format template into an anchored regexp with one capture
// group per ${var}.
func compile(s Scheme) (compiledScheme, error) {
	quoted := regexp.QuoteMeta(s.Format)
	var vars []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(quoted, -1) {
		vars = append(vars, m[1])
		quoted = strings.Replace(quoted, m[0], `([^,\s]+)`, 1)
	}
	if !lo.Contains(vars, "signature") {
		return compiledScheme{}, fmt.Errorf("format %q has no ${signature} placeholder", s.Format)
	}
	re, err := regexp.Compile("^" + quoted + "$")
	if err != nil {
		return compiledScheme{}, fmt.Errorf("invalid format %q: %w", s.Format, err)
	}
	return compiledScheme{Scheme: s, pattern: re, vars: vars}, nil
}

// Configured reports whether a secret is set.
func (v *Verifier) Configured() bool {
	return len(v.secret) > 0
}

// Verify checks the signature carried by headers over body. Schemes are tried
// in order and the first match wins. The returned error is an AppError of type
// config (no secret) or authentication (missing or bad signature).
func (v *Verifier) Verify(headers http.Header, body []byte) error {
	if !v.Configured() {
		v.logger.Error("Webhook secret not configured", nil)
		return asAppError(ErrSecretNotConfigured, "")
	}

	var lastErr error = ErrMissingSignature
	header := v.schemes[0].Header
	for _, s := range v.schemes {
		value := headers.Get(s.Header)
		if value == "" {
			continue
		}
		header = s.Header
		err := v.verifyScheme(s, value, body)
		if err == nil {
			return nil
		}
		lastErr = err
		v.logger.Debug("Signature scheme did not match",
			logging.String("header", s.Header),
			logging.Err(err),
		)
	}

	v.logger.Warn("Signature verification failed",
		logging.String("header", header),
		logging.Err(lastErr),
	)
	return asAppError(lastErr, header)
}

func (v *Verifier) verifyScheme(s compiledScheme, headerValue string, body []byte) error {
	values, err := parseHeader(s, headerValue)
	if err != nil {
		return err
	}

	if ts, ok := values["timestamp"]; ok && s.Tolerance > 0 {
		if err := v.checkTimestamp(ts, s.Tolerance); err != nil {
			return err
		}
	}

	provided, err := decodeDigest(values["signature"], s.Encoding)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	expected, err := computeMAC(v.secret, s.Algorithm, buildInput(s.Input, body, values))
	if err != nil {
		return err
	}

	if !hmac.Equal(provided, expected) {
		return fmt.Errorf("%w: digest mismatch", ErrInvalidSignature)
	}
	return nil
}

func parseHeader(s compiledScheme, headerValue string) (map[string]string, error) {
	m := s.pattern.FindStringSubmatch(strings.TrimSpace(headerValue))
	if m == nil {
		return nil, fmt.Errorf("%w: header does not match format %q", ErrInvalidSignature, s.Format)
	}
	values := make(map[string]string, len(s.vars))
	for i, name := range s.vars {
		values[name] = m[i+1]
	}
	return values, nil
}

// checkTimestamp accepts unix seconds or milliseconds.
func (v *Verifier) checkTimestamp(raw string, tolerance time.Duration) error {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid timestamp %q", ErrTimestampOutOfRange, raw)
	}
	var ts time.Time
	if n > 1e12 {
		ts = time.UnixMilli(n)
	} else {
		ts = time.Unix(n, 0)
	}
	age := v.now().Sub(ts)
	if age < 0 {
		age = -age
	}
	if age > tolerance {
		return fmt.Errorf("%w: age %s", ErrTimestampOutOfRange, age.Round(time.Second))
	}
	return nil
}

func buildInput(template string, body []byte, values map[string]string) []byte {
	if template == "" || template == "${body}" {
		return body
	}
	var buf bytes.Buffer
	rest := template
	for {
		i := strings.Index(rest, "${")
		if i < 0 {
			buf.WriteString(rest)
			break
		}
		j := strings.Index(rest[i:], "}")
		if j < 0 {
			buf.WriteString(rest)
			break
		}
		buf.WriteString(rest[:i])
		name := rest[i+2 : i+j]
		if name == "body" {
			buf.Write(body)
		} else {
			buf.WriteString(values[name])
		}
		rest = rest[i+j+1:]
	}
	return buf.Bytes()
}

func newHash(algorithm string) (func() hash.Hash, error) {
	switch algorithm {
	case "hmac-sha1":
		return sha1.New, nil
	case "hmac-sha256":
		return sha256.New, nil
	case "hmac-sha512":
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("unsupported algorithm: %s", algorithm)
	}
}

func computeMAC(secret []byte, algorithm string, input []byte) ([]byte, error) {
	fn, err := newHash(algorithm)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(fn, secret)
	mac.Write(input)
	return mac.Sum(nil), nil
}

// decodeDigest decodes sig. "auto" tries hex first, then every base64 alphabet.
func decodeDigest(sig, encoding string) ([]byte, error) {
	switch encoding {
	case "hex":
		return hex.DecodeString(sig)
	case "base64", "base64url":
		return decodeBase64(sig)
	case "auto":
		if b, err := hex.DecodeString(sig); err == nil {
			return b, nil
		}
		return decodeBase64(sig)
	default:
		return nil, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}

// decodeBase64 accepts standard and URL alphabets, padded or not.
func decodeBase64(sig string) ([]byte, error) {
	trimmed := strings.TrimRight(sig, "=")
	if strings.ContainsAny(trimmed, "-_") {
		return base64.RawURLEncoding.DecodeString(trimmed)
	}
	return base64.RawStdEncoding.DecodeString(trimmed)
}

// Sign returns the header value a sender using s would attach to body.
// ts is ignored by schemes without ${timestamp}.
func Sign(s Scheme, secret string, body []byte, ts time.Time) (string, error) {
	cs, err := compile(s)
	if err != nil {
		return "", err
	}
	values := map[string]string{"timestamp": strconv.FormatInt(ts.UnixMilli(), 10)}
	mac, err := computeMAC([]byte(secret), s.Algorithm, buildInput(s.Input, body, values))
	if err != nil {
		return "", err
	}

	var digest string
	switch s.Encoding {
	case "base64":
		digest = base64.StdEncoding.EncodeToString(mac)
	case "base64url":
		digest = base64.RawURLEncoding.EncodeToString(mac)
	default:
		digest = hex.EncodeToString(mac)
	}

	out := cs.Format
	out = strings.ReplaceAll(out, "${timestamp}", values["timestamp"])
	out = strings.ReplaceAll(out, "${signature}", digest)
	return out, nil
}

// ReadBody reads r.Body up to MaxBodySize and restores it so later handlers
// can read it again.
func ReadBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodySize+1))
	if err != nil {
		return nil, apperrors.InternalError("failed to read request body", err)
	}
	if len(body) > MaxBodySize {
		return nil, apperrors.ValidationError("request body too large")
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}
