// Package smtp delivers alert email through an external relay.
package smtp

import (
	"context"
	"fmt"
	"log/slog"

	gomail "github.com/wneessen/go-mail"

	"github.com/thermasense/telemetry-engine/internal/config"
)

// Mailer sends plain-text messages through a single SMTP relay.
type Mailer struct {
	client *gomail.Client
	from   string
	logger *slog.Logger
}

// NewMailer dials nothing up front; connection problems surface on Send.
func NewMailer(cfg *config.Config, logger *slog.Logger) (*Mailer, error) {
	client, err := gomail.NewClient(cfg.SMTPHost,
		gomail.WithPort(cfg.SMTPPort),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.SMTPUser),
		gomail.WithPassword(cfg.SMTPPass),
	)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &Mailer{client: client, from: cfg.AlertFrom, logger: logger}, nil
}

// Send delivers one message to one recipient.
func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("set sender %q: %w", m.from, err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send to %q: %w", to, err)
	}
	m.logger.Debug("alert email delivered", "to", to)
	return nil
}
