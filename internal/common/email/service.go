// Package email composes MIME messages with go-message and delivers them over
// SMTP.
package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"time"

	"github.com/emersion/go-message/mail"

	"renda-edge/internal/common/logging"
)

// Config holds SMTP settings. Port 465 uses implicit TLS, anything else
// plain SMTP upgraded with STARTTLS when the server offers it.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// Message is a plain-text email.
type Message struct {
	To       []string
	ReplyTo  *mail.Address
	Subject  string
	TextBody string
}

// sendFunc matches smtp.SendMail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service sends email through one SMTP server.
type Service struct {
	config Config
	logger logging.Logger
	send   sendFunc
	now    func() time.Time
}

func NewService(config Config, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	s := &Service{config: config, logger: logger, now: time.Now}
	if config.Port == "465" {
		s.send = s.sendWithSSL
	} else {
		s.send = smtp.SendMail
	}
	return s
}

// Compose renders msg as an RFC 5322 message.
func (s *Service) Compose(msg Message) ([]byte, error) {
	var h mail.Header
	h.SetDate(s.now())
	h.SetSubject(msg.Subject)
	h.SetAddressList("From", []*mail.Address{{Address: s.config.From}})

	to := make([]*mail.Address, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, &mail.Address{Address: addr})
	}
	h.SetAddressList("To", to)
	if msg.ReplyTo != nil {
		h.SetAddressList("Reply-To", []*mail.Address{msg.ReplyTo})
	}
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}
	if _, err := io.WriteString(w, msg.TextBody); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Send composes and delivers msg. The SMTP exchange itself does not observe
// ctx; a cancelled ctx only stops Send from starting.
func (s *Service) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("email has no recipients")
	}
	raw, err := s.Compose(msg)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}
	addr := net.JoinHostPort(s.config.Host, s.config.Port)
	if err := s.send(addr, auth, s.config.From, msg.To, raw); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Debug("Email sent",
		logging.Strings("to", msg.To),
		logging.String("subject", msg.Subject),
	)
	return nil
}

func (s *Service) sendWithSSL(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.config.Host})
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if auth != nil {
		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}
	if err = client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err = client.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err = w.Write(msg); err != nil {
		return err
	}
	if err = w.Close(); err != nil {
		return err
	}
	return client.Quit()
}
