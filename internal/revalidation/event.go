// Package revalidation turns CMS change notifications into cache invalidations.
package revalidation

import (
	"encoding/json"
	"net/http"
	"strings"

	"renda-edge/internal/common/errors"
)

// OperationHeader carries the mutation kind when the projection omits it.
const OperationHeader = "sanity-operation"

// Document types the site renders.
const (
	TypeProduct     = "product"
	TypeAssociation = "association"
	TypeNews        = "news"
	TypeSettings    = "settings"
)

// WebhookEvent is the part of a webhook body the dispatcher needs.
type WebhookEvent struct {
	Type      string
	ID        string
	Operation string
	Slug      string
}

type payload struct {
	Type      string          `json:"_type"`
	ID        string          `json:"_id"`
	Operation string          `json:"operation"`
	Slug      json.RawMessage `json:"slug"`
}

// ParseEvent decodes a verified webhook body. The slug may be a Sanity slug
// object ({"current": "..."}) or a plain string. An empty _type is rejected.
func ParseEvent(body []byte, headers http.Header) (WebhookEvent, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return WebhookEvent{}, errors.ValidationError("malformed webhook payload").WithCause(err)
	}
	if strings.TrimSpace(p.Type) == "" {
		return WebhookEvent{}, errors.ValidationError("webhook payload has no _type")
	}

	event := WebhookEvent{
		Type:      p.Type,
		ID:        p.ID,
		Operation: p.Operation,
		Slug:      parseSlug(p.Slug),
	}
	if event.Operation == "" && headers != nil {
		event.Operation = headers.Get(OperationHeader)
	}
	return event, nil
}

func parseSlug(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var obj struct {
		Current string `json:"current"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.Current)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return ""
}
