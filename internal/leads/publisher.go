// Package leads notifies the cooperative about new contact messages.
//
// Publishing happens after the message is stored, so a failed notification
// never loses a lead; callers log the error and carry on.
package leads

import (
	"context"
	stderrors "errors"
	"time"

	"renda-edge/internal/common/logging"
	"renda-edge/internal/storage"
)

// Publisher delivers a stored contact message somewhere people will see it.
type Publisher interface {
	PublishContact(ctx context.Context, msg *storage.ContactMessage) error
	Close() error
}

// ContactEvent is the JSON payload published for a new contact message.
type ContactEvent struct {
	Event       string    `json:"event"`
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	Subject     string    `json:"subject,omitempty"`
	Message     string    `json:"message"`
	ProductSlug string    `json:"productSlug,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

const EventContactCreated = "contact.created"

func NewContactEvent(msg *storage.ContactMessage) ContactEvent {
	return ContactEvent{
		Event:       EventContactCreated,
		ID:          msg.ID,
		Name:        msg.Name,
		Email:       msg.Email,
		Phone:       msg.Phone,
		Subject:     msg.Subject,
		Message:     msg.Message,
		ProductSlug: msg.ProductSlug,
		CreatedAt:   msg.CreatedAt,
	}
}

// Noop drops every message.
type Noop struct{}

func (Noop) PublishContact(context.Context, *storage.ContactMessage) error { return nil }
func (Noop) Close() error                                                 { return nil }

// Multi fans a message out to every publisher, trying all of them.
type Multi struct {
	publishers []Publisher
	logger     logging.Logger
}

func NewMulti(logger logging.Logger, publishers ...Publisher) *Multi {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Multi{publishers: publishers, logger: logger}
}

func (m *Multi) PublishContact(ctx context.Context, msg *storage.ContactMessage) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.PublishContact(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Len returns how many publishers m fans out to.
func (m *Multi) Len() int { return len(m.publishers) }
