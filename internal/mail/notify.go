package mail

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/serik1987/corefacility/internal/config"
	"github.com/serik1987/corefacility/internal/domain"
)

// Template prefixes.
const (
	templateActivation = "activation"
	templateQueueAlert = "posix_queue"
)

// Notifier sends the platform notifications: activation codes to users and
// queue alerts to administrators.
type Notifier struct {
	cfg       config.MailConfig
	templates *TemplateStore
	mailer    Mailer
	logger    zerolog.Logger
}

// NewNotifier creates a notifier.
func NewNotifier(cfg config.MailConfig, templates *TemplateStore, mailer Mailer, logger zerolog.Logger) *Notifier {
	return &Notifier{
		cfg:       cfg,
		templates: templates,
		mailer:    mailer,
		logger:    logger.With().Str("component", "notifier").Logger(),
	}
}

// ActivationData feeds the activation template.
type ActivationData struct {
	Name    string
	Surname string
	Login   string
	Code    string
}

// SendActivation mails a fresh activation code to the user. The cleartext
// code exists only in this mail; the datastore holds its hash.
func (n *Notifier) SendActivation(ctx context.Context, user *domain.User, code, locale string) error {
	if user.Email == "" {
		return domain.NewDomainError(domain.ErrMailAddressUndefined,
			"user has no email address", user.Login)
	}
	msg, err := n.templates.Render(templateActivation, locale, ActivationData{
		Name:    user.Name,
		Surname: user.Surname,
		Login:   user.Login,
		Code:    code,
	})
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, []string{user.Email}, msg)
}

// QueueAlertData feeds the administrator queue alert template.
type QueueAlertData struct {
	RequestID   int64
	ActionClass string
	Method      string
}

// NotifyQueued alerts the administrators that a privileged request awaits
// confirmation. Fires only in suggest mode.
func (n *Notifier) NotifyQueued(ctx context.Context, req *domain.PosixRequest) error {
	if len(n.cfg.Admins) == 0 {
		n.logger.Warn().Int64("request_id", req.ID).Msg("no administrator addresses configured")
		return nil
	}
	msg, err := n.templates.Render(templateQueueAlert, "", QueueAlertData{
		RequestID:   req.ID,
		ActionClass: req.ActionClass,
		Method:      req.Method,
	})
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, n.cfg.Admins, msg)
}
