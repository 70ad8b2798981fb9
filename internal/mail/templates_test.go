package mail

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serik1987/corefacility/internal/config"
	"github.com/serik1987/corefacility/internal/domain"
)

// writeTemplate drops one template file into the test directory.
func writeTemplate(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func newTestStore(t *testing.T) (*TemplateStore, string) {
	t.Helper()
	dir := t.TempDir()
	writeTemplate(t, dir, "activation.en-GB.txt",
		"Activate your account\n\nDear {{.Name}} {{.Surname}},\nyour code is {{.Code}}.\n")
	writeTemplate(t, dir, "activation.ru-RU.txt",
		"Активация учётной записи\n\nУважаемый {{.Name}} {{.Surname}},\nваш код: {{.Code}}.\n")
	return NewTemplateStore(dir, "en-GB"), dir
}

func TestTemplateStore_Render(t *testing.T) {
	store, dir := newTestStore(t)
	data := ActivationData{Name: "Sergei", Surname: "Kozhukhov", Login: "sergei", Code: "abc123"}

	t.Run("subject is the first line", func(t *testing.T) {
		msg, err := store.Render("activation", "en-GB", data)
		require.NoError(t, err)
		assert.Equal(t, "Activate your account", msg.Subject)
		assert.Contains(t, msg.Text, "Dear Sergei Kozhukhov")
		assert.Contains(t, msg.Text, "abc123")
		assert.NotContains(t, msg.Text, "Activate your account")
		assert.Empty(t, msg.HTML)
	})

	t.Run("localized template is picked", func(t *testing.T) {
		msg, err := store.Render("activation", "ru-RU", data)
		require.NoError(t, err)
		assert.Equal(t, "Активация учётной записи", msg.Subject)
	})

	t.Run("missing locale falls back to the default", func(t *testing.T) {
		msg, err := store.Render("activation", "de-DE", data)
		require.NoError(t, err)
		assert.Equal(t, "Activate your account", msg.Subject)
	})

	t.Run("empty locale uses the default", func(t *testing.T) {
		msg, err := store.Render("activation", "", data)
		require.NoError(t, err)
		assert.Equal(t, "Activate your account", msg.Subject)
	})

	t.Run("missing template", func(t *testing.T) {
		_, err := store.Render("farewell", "en-GB", data)
		assert.Error(t, err)
	})

	t.Run("optional html part", func(t *testing.T) {
		writeTemplate(t, dir, "activation.en-GB.html",
			"<p>Dear {{.Name}}, your code is <b>{{.Code}}</b>.</p>")
		msg, err := store.Render("activation", "en-GB", data)
		require.NoError(t, err)
		assert.Contains(t, msg.HTML, "<b>abc123</b>")
	})
}

// MockMailer records deliveries.
type MockMailer struct {
	to  []string
	msg *Message
}

func (m *MockMailer) Send(ctx context.Context, to []string, msg *Message) error {
	m.to = to
	m.msg = msg
	return nil
}

var _ Mailer = (*MockMailer)(nil)

func TestNotifier_SendActivation(t *testing.T) {
	store, _ := newTestStore(t)
	user := &domain.User{Login: "sergei", Name: "Sergei", Surname: "Kozhukhov",
		Email: "sergei@ihna.ru"}

	t.Run("delivers to the user address", func(t *testing.T) {
		mailer := &MockMailer{}
		n := NewNotifier(config.MailConfig{}, store, mailer, zerolog.Nop())

		require.NoError(t, n.SendActivation(context.Background(), user, "abc123", "en-GB"))
		assert.Equal(t, []string{"sergei@ihna.ru"}, mailer.to)
		assert.Contains(t, mailer.msg.Text, "abc123")
	})

	t.Run("no email address", func(t *testing.T) {
		mailer := &MockMailer{}
		n := NewNotifier(config.MailConfig{}, store, mailer, zerolog.Nop())

		err := n.SendActivation(context.Background(), &domain.User{Login: "nomail"}, "abc123", "")
		assert.ErrorIs(t, err, domain.ErrMailAddressUndefined)
		assert.Nil(t, mailer.msg)
	})
}

func TestNotifier_NotifyQueued(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "posix_queue.en-GB.txt",
		"Request {{.RequestID}} awaits confirmation\n\n{{.ActionClass}}.{{.Method}} is queued.\n")
	store := NewTemplateStore(dir, "en-GB")
	req := &domain.PosixRequest{ID: 42, ActionClass: "posix.UserAccount", Method: "create"}

	t.Run("alerts every administrator", func(t *testing.T) {
		mailer := &MockMailer{}
		cfg := config.MailConfig{Admins: []string{"root@ihna.ru", "ops@ihna.ru"}}
		n := NewNotifier(cfg, store, mailer, zerolog.Nop())

		require.NoError(t, n.NotifyQueued(context.Background(), req))
		assert.Equal(t, cfg.Admins, mailer.to)
		assert.Equal(t, "Request 42 awaits confirmation", mailer.msg.Subject)
		assert.Contains(t, mailer.msg.Text, "posix.UserAccount.create")
	})

	t.Run("no administrators configured", func(t *testing.T) {
		mailer := &MockMailer{}
		n := NewNotifier(config.MailConfig{}, store, mailer, zerolog.Nop())

		require.NoError(t, n.NotifyQueued(context.Background(), req))
		assert.Nil(t, mailer.msg, "delivery is skipped")
	})
}

func TestLogMailer(t *testing.T) {
	m := &LogMailer{logger: zerolog.Nop()}
	msg := &Message{Subject: "s", Text: "t"}

	assert.NoError(t, m.Send(context.Background(), []string{"a@b"}, msg))
	assert.ErrorIs(t, m.Send(context.Background(), nil, msg), domain.ErrMailAddressUndefined)
}
