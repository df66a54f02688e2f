package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"os"
	"strconv"

	"gopkg.in/gomail.v2"
)

//go:embed templates/*.html
var templateFS embed.FS

// Mailer renders a named template and dispatches it over SMTP. Rendering and
// sending are both synchronous; failures propagate to the caller.
type Mailer interface {
	Send(to, subject, templateName string, data any) error
}

type smtpMailer struct {
	dialer    *gomail.Dialer
	from      string
	templates *template.Template
}

// NewSMTPMailer reads SMTP_HOST / SMTP_PORT / SMTP_MAIL / SMTP_PASSWORD from
// the environment and parses the embedded mail templates.
func NewSMTPMailer() (Mailer, error) {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		return nil, fmt.Errorf("SMTP_HOST is not configured")
	}

	port := 587
	if portStr := os.Getenv("SMTP_PORT"); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
		}
		port = p
	}

	from := os.Getenv("SMTP_MAIL")
	password := os.Getenv("SMTP_PASSWORD")

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse mail templates: %w", err)
	}

	return &smtpMailer{
		dialer:    gomail.NewDialer(host, port, from, password),
		from:      from,
		templates: tmpl,
	}, nil
}

func (m *smtpMailer) Send(to, subject, templateName string, data any) error {
	var body bytes.Buffer
	if err := m.templates.ExecuteTemplate(&body, templateName, data); err != nil {
		return fmt.Errorf("failed to render mail template %s: %w", templateName, err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body.String())

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}

	return nil
}
