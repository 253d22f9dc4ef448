// Package mailer sends the transactional mail the API produces, which
// today is invitation notices. Handlers call it fire-and-forget; a mail
// failure never fails the request that triggered it.
package mailer

import (
	"fmt"
	"net/smtp"

	"teamhub-backend/pkg/config"
)

// Mailer delivers a single message.
type Mailer interface {
	Send(to, subject, body string) error
}

// SMTPMailer delivers over plain SMTP with auth.
type SMTPMailer struct {
	host string
	port string
	user string
	pass string
	from string
}

// NoopMailer swallows messages. Used when SMTP is not configured and in
// tests.
type NoopMailer struct{}

func (NoopMailer) Send(to, subject, body string) error { return nil }

// New picks an implementation from configuration.
func New(cfg *config.Config) Mailer {
	if cfg.SMTPHost == "" {
		return NoopMailer{}
	}
	return &SMTPMailer{
		host: cfg.SMTPHost,
		port: cfg.SMTPPort,
		user: cfg.SMTPUser,
		pass: cfg.SMTPPass,
		from: cfg.SMTPFrom,
	}
}

// Send delivers one message to one recipient.
func (m *SMTPMailer) Send(to, subject, body string) error {
	msg := []byte("From: " + m.from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=\"UTF-8\"\r\n" +
		"\r\n" +
		body + "\r\n")

	addr := m.host + ":" + m.port
	auth := smtp.PlainAuth("", m.user, m.pass, m.host)
	if err := smtp.SendMail(addr, auth, m.from, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}

// InvitationBody renders the invitation notice.
func InvitationBody(orgName, inviterEmail, role, acceptURL string) string {
	return fmt.Sprintf(
		"%s has invited you to join %s as %s.\n\n"+
			"Accept the invitation here:\n%s\n\n"+
			"The invitation expires in 7 days. If you were not expecting "+
			"this email you can ignore it.\n",
		inviterEmail, orgName, role, acceptURL)
}
