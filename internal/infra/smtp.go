package infra

import (
	"fmt"
	"net/smtp"

	"tillshift/internal/config"

	"github.com/jordan-wright/email"
)

// Mailer wraps SMTP configuration for report and alert emails.
type Mailer struct {
	host     string
	user     string
	password string
	addr     string
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		host:     cfg.SMTPHost,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
	}
}

// Enabled is false when no SMTP host is configured.
func (m *Mailer) Enabled() bool { return m.host != "" }

// Send delivers a plain-text email with an optional file attachment.
func (m *Mailer) Send(to, subject, body, attachmentPath string) error {
	if !m.Enabled() {
		return fmt.Errorf("mailer: SMTP_HOST not configured")
	}
	e := email.NewEmail()
	e.From = m.user
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)

	if attachmentPath != "" {
		if _, err := e.AttachFile(attachmentPath); err != nil {
			return fmt.Errorf("mailer: attach file: %w", err)
		}
	}

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.password, m.host)
	}
	return e.Send(m.addr, auth)
}
