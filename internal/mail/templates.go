// Package mail renders and delivers notification mail: account activation
// codes for users and queue alerts for administrators. Templates are stored
// per (prefix, locale) pair; a missing locale falls back to the default one.
package mail

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"os"
	"path/filepath"
	"strings"
	texttemplate "text/template"
)

// Message is one rendered mail. The HTML part is optional.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// TemplateStore loads mail templates from a directory. A template pair is
// addressed as <prefix>.<locale>.txt and optionally <prefix>.<locale>.html;
// the first line of the rendered text part is the subject.
type TemplateStore struct {
	dir           string
	defaultLocale string
}

// NewTemplateStore creates a store over the template directory.
func NewTemplateStore(dir, defaultLocale string) *TemplateStore {
	if defaultLocale == "" {
		defaultLocale = "en-GB"
	}
	return &TemplateStore{dir: dir, defaultLocale: defaultLocale}
}

// resolve returns the template path for the pair, falling back to the
// default locale when the requested one is missing.
func (s *TemplateStore) resolve(prefix, locale, ext string) (string, error) {
	if locale != "" {
		path := filepath.Join(s.dir, fmt.Sprintf("%s.%s.%s", prefix, locale, ext))
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	path := filepath.Join(s.dir, fmt.Sprintf("%s.%s.%s", prefix, s.defaultLocale, ext))
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("mail template %q not found for locale %q: %w", prefix, locale, err)
	}
	return path, nil
}

// Render produces the message of a template pair for the given data.
func (s *TemplateStore) Render(prefix, locale string, data any) (*Message, error) {
	textPath, err := s.resolve(prefix, locale, "txt")
	if err != nil {
		return nil, err
	}
	tt, err := texttemplate.ParseFiles(textPath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mail template: %w", err)
	}
	var textBuf bytes.Buffer
	if err := tt.ExecuteTemplate(&textBuf, filepath.Base(textPath), data); err != nil {
		return nil, fmt.Errorf("failed to render mail template: %w", err)
	}

	subject, body, _ := strings.Cut(textBuf.String(), "\n")
	msg := &Message{
		Subject: strings.TrimSpace(subject),
		Text:    strings.TrimLeft(body, "\n"),
	}

	htmlPath, err := s.resolve(prefix, locale, "html")
	if err != nil {
		// The HTML part is optional.
		return msg, nil
	}
	ht, err := htmltemplate.ParseFiles(htmlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mail template: %w", err)
	}
	var htmlBuf bytes.Buffer
	if err := ht.ExecuteTemplate(&htmlBuf, filepath.Base(htmlPath), data); err != nil {
		return nil, fmt.Errorf("failed to render mail template: %w", err)
	}
	msg.HTML = htmlBuf.String()
	return msg, nil
}
