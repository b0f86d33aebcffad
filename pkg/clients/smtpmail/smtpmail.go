// Package smtpmail implements the outbound mail protocol over plain SMTP.
package smtpmail

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Mailer sends mail through a single SMTP relay.
type Mailer struct {
	logger *slog.Logger
	addr   string
	from   string
	auth   smtp.Auth
}

// NewMailer builds a Mailer for the relay at addr (host:port). Username may
// be empty for relays without authentication.
func NewMailer(logger *slog.Logger, addr, from, username, password string) *Mailer {
	var auth smtp.Auth
	if username != "" {
		host := addr
		if idx := strings.IndexByte(addr, ':'); idx >= 0 {
			host = addr[:idx]
		}

		auth = smtp.PlainAuth("", username, password, host)
	}

	return &Mailer{
		logger: logger.With("module", "smtp_mailer"),
		addr:   addr,
		from:   from,
		auth:   auth,
	}
}

// Send delivers one plain-text message. net/smtp has no context support, so
// cancellation is checked before dialing only.
func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + to,
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}

	m.logger.DebugContext(ctx, "Mail sent", "to", to, "subject", subject)

	return nil
}
