package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// EmailSettings holds SMTP connection details for the email sink
type EmailSettings struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Recipients []string
}

// EmailSink delivers rendered payloads as plain-text email over SMTP
type EmailSink struct {
	logger   *zap.Logger
	settings EmailSettings
}

// NewEmailSink creates an SMTP email sink
func NewEmailSink(settings EmailSettings, logger *zap.Logger) *EmailSink {
	return &EmailSink{
		logger:   logger.Named("email-sink"),
		settings: settings,
	}
}

// Deliver formats the payload as an email and sends it to the configured
// recipients
func (s *EmailSink) Deliver(ctx context.Context, payload *Payload) error {
	var auth smtp.Auth
	if s.settings.Username != "" {
		auth = smtp.PlainAuth("",
			s.settings.Username,
			s.settings.Password,
			s.settings.Host)
	}

	msg := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"\r\n"+
		"%s\r\n",
		s.settings.From,
		strings.Join(s.settings.Recipients, ", "),
		payload.Title,
		formatEmailBody(payload))

	addr := fmt.Sprintf("%s:%d", s.settings.Host, s.settings.Port)
	if err := smtp.SendMail(addr, auth, s.settings.From, s.settings.Recipients, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func formatEmailBody(payload *Payload) string {
	var b strings.Builder
	b.WriteString(payload.Text)
	b.WriteString("\r\n")
	for _, field := range payload.Fields {
		fmt.Fprintf(&b, "\r\n%s: %s", field.Title, field.Value)
	}
	if len(payload.Mentions) > 0 {
		fmt.Fprintf(&b, "\r\n\r\nNotify: %s", strings.Join(payload.Mentions, " "))
	}
	return b.String()
}
