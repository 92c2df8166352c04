// Package validation validates and sanitizes visitor input with
// go-playground/validator and bluemonday.
package validation

import (
	stderrors "errors"
	"fmt"
	"html"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	apperrors "renda-edge/internal/common/errors"
)

// FieldError is one failed rule, reported with the JSON field name.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// Validator validates structs tagged with `validate:"..."`.
type Validator struct {
	validate *validator.Validate
	policy   *bluemonday.Policy
}

var (
	slugPattern  = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9 ()\-]{8,20}$`)
)

func New() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("sitepath", func(fl validator.FieldLevel) bool {
		p := fl.Field().String()
		return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.ContainsAny(p, " \t\r\n")
	})

	return &Validator{validate: v, policy: bluemonday.StrictPolicy()}
}

// Struct validates s. The error is a validation AppError whose message
// names the first failing field; every failure is in its context.
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	fields := FieldErrors(err)
	if len(fields) == 0 {
		return apperrors.ValidationError("invalid input").WithCause(err)
	}
	return apperrors.ValidationError(fields[0].Message).
		WithCause(err).
		WithContext("fields", fields)
}

// Var validates a single value against tag.
func (v *Validator) Var(field interface{}, tag string) error {
	if err := v.validate.Var(field, tag); err != nil {
		return apperrors.ValidationError("invalid value").WithCause(err)
	}
	return nil
}

// Sanitize strips all markup and trims surrounding space. The result is
// plain text, not HTML.
func (v *Validator) Sanitize(s string) string {
	return strings.TrimSpace(html.UnescapeString(v.policy.Sanitize(s)))
}

// FieldErrors flattens validator errors into FieldErrors.
func FieldErrors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return nil
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: message(fe),
		})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "slug":
		return fmt.Sprintf("%s must be a valid slug", fe.Field())
	case "phone":
		return fmt.Sprintf("%s must be a valid phone number", fe.Field())
	case "sitepath":
		return fmt.Sprintf("%s must be a site path starting with /", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
