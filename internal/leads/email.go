package leads

import (
	"context"
	"fmt"
	"strings"

	"github.com/emersion/go-message/mail"

	"renda-edge/internal/circuitbreaker"
	"renda-edge/internal/common/email"
	"renda-edge/internal/common/logging"
	"renda-edge/internal/storage"
)

// Mailer sends a composed message.
type Mailer interface {
	Send(ctx context.Context, msg email.Message) error
}

// EmailPublisher mails each contact message to the cooperative, with
// Reply-To set to the visitor.
type EmailPublisher struct {
	mailer  Mailer
	to      []string
	baseURL string
	breaker *circuitbreaker.Breaker
}

func NewEmailPublisher(mailer Mailer, to []string, publicBaseURL string, logger logging.Logger) *EmailPublisher {
	return &EmailPublisher{
		mailer:  mailer,
		to:      to,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		breaker: circuitbreaker.New("smtp", circuitbreaker.NotifyConfig, logger),
	}
}

func (p *EmailPublisher) PublishContact(ctx context.Context, msg *storage.ContactMessage) error {
	subject := "Novo contato pelo site: " + msg.Name
	if msg.Subject != "" {
		subject += " (" + msg.Subject + ")"
	}
	return p.breaker.Execute(ctx, func() error {
		return p.mailer.Send(ctx, email.Message{
			To:       p.to,
			ReplyTo:  &mail.Address{Name: msg.Name, Address: msg.Email},
			Subject:  subject,
			TextBody: p.body(msg),
		})
	})
}

func (p *EmailPublisher) body(msg *storage.ContactMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Nome: %s\n", msg.Name)
	fmt.Fprintf(&b, "E-mail: %s\n", msg.Email)
	if msg.Phone != "" {
		fmt.Fprintf(&b, "Telefone: %s\n", msg.Phone)
	}
	if msg.ProductSlug != "" {
		fmt.Fprintf(&b, "Produto: %s/product/%s\n", p.baseURL, msg.ProductSlug)
	}
	fmt.Fprintf(&b, "Recebido em: %s\n\n", msg.CreatedAt.Format("02/01/2006 15:04 MST"))
	b.WriteString(msg.Message)
	b.WriteString("\n")
	return b.String()
}

func (p *EmailPublisher) Close() error { return nil }
