package service

import (
	"context"
	"fmt"
	"html"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/mysocial/shop-api/internal/config"
	"github.com/mysocial/shop-api/internal/queue"
)

// Mailer sends one email.
type Mailer interface {
	Send(ctx context.Context, to, subject, textBody, htmlBody string) error
}

// SMTPMailer delivers through an SMTP relay.
type SMTPMailer struct {
	cfg config.SMTPConfig
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer { return &SMTPMailer{cfg: cfg} }

func (m *SMTPMailer) Send(_ context.Context, to, subject, textBody, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", textBody)
	msg.AddAlternative("text/html", htmlBody)

	d := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.User, m.cfg.Pass)
	if err := d.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

// LogMailer stands in when SMTP is not configured.
type LogMailer struct {
	Log *zap.Logger
}

func (m LogMailer) Send(_ context.Context, to, subject, _, _ string) error {
	m.Log.Warn("smtp not configured; email dropped", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// NewMailer picks SMTP when host, user and password are all set.
func NewMailer(cfg config.SMTPConfig, log *zap.Logger) Mailer {
	if cfg.Host != "" && cfg.User != "" && cfg.Pass != "" {
		return NewSMTPMailer(cfg)
	}
	return LogMailer{Log: log}
}

// DeliverResetEmail renders and sends the password reset email for ev.
func DeliverResetEmail(ctx context.Context, m Mailer, ev queue.PasswordResetRequestedEvent) error {
	text := "Reset your password using this link: " + ev.ResetLink
	link := html.EscapeString(ev.ResetLink)
	body := `<p>Reset your password using this link:</p><p><a href="` + link + `">` + link + `</a></p>`
	return m.Send(ctx, ev.Email, "MySocial password reset", text, body)
}
