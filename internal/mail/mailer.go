package mail

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/serik1987/corefacility/internal/config"
	"github.com/serik1987/corefacility/internal/domain"
)

// Mailer delivers rendered messages.
type Mailer interface {
	Send(ctx context.Context, to []string, msg *Message) error
}

// NewMailer selects the delivery backend: SMTP when a host is configured,
// otherwise a log-only mailer for development profiles.
func NewMailer(cfg config.MailConfig, logger zerolog.Logger) Mailer {
	if cfg.SMTPHost == "" {
		return &LogMailer{logger: logger.With().Str("component", "mail").Logger()}
	}
	return &SMTPMailer{cfg: cfg, logger: logger.With().Str("component", "mail").Logger()}
}

// SMTPMailer delivers through a relay host.
type SMTPMailer struct {
	cfg    config.MailConfig
	logger zerolog.Logger
}

// Send implements Mailer.
func (m *SMTPMailer) Send(ctx context.Context, to []string, msg *Message) error {
	if len(to) == 0 {
		return domain.NewDomainError(domain.ErrMailAddressUndefined, "no recipients", "")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Text)

	if err := smtp.SendMail(m.cfg.Addr(), nil, m.cfg.From, to, []byte(b.String())); err != nil {
		m.logger.Error().Err(err).Strs("to", to).Msg("mail delivery failed")
		return domain.NewDomainError(domain.ErrMailFailed, err.Error(), strings.Join(to, ","))
	}
	m.logger.Info().Strs("to", to).Str("subject", msg.Subject).Msg("mail delivered")
	return nil
}

// LogMailer records messages in the log instead of delivering them.
type LogMailer struct {
	logger zerolog.Logger
}

// Send implements Mailer.
func (m *LogMailer) Send(ctx context.Context, to []string, msg *Message) error {
	if len(to) == 0 {
		return domain.NewDomainError(domain.ErrMailAddressUndefined, "no recipients", "")
	}
	m.logger.Info().
		Strs("to", to).
		Str("subject", msg.Subject).
		Str("body", msg.Text).
		Msg("mail suppressed by configuration")
	return nil
}
