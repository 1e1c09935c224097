package service

import (
	"context"
	"fmt"

	mail "github.com/go-mail/mail/v2"
)

// SMTPConfig is the outbound mail account.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	FromName string
	From     string
}

// Mailer is the SMTP Notifier.
type Mailer struct {
	cfg  SMTPConfig
	send func(m *mail.Message) error
}

func NewMailer(cfg SMTPConfig) *Mailer {
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.StartTLSPolicy = mail.OpportunisticStartTLS
	return &Mailer{cfg: cfg, send: func(m *mail.Message) error { return d.DialAndSend(m) }}
}

func (m *Mailer) message(msg Message) *mail.Message {
	out := mail.NewMessage()
	out.SetHeader("From", out.FormatAddress(m.cfg.From, m.cfg.FromName))
	out.SetHeader("To", msg.To)
	out.SetHeader("Subject", msg.Subject)
	out.SetBody("text/plain", msg.Body)
	return out
}

// Send delivers msg. The dialer has no context support, so ctx is only checked up front.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.cfg.Host == "" {
		return fmt.Errorf("smtp host not configured")
	}
	if err := m.send(m.message(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}
