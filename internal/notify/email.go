package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	netmail "net/mail"
	"strings"
	"time"

	mail "github.com/go-mail/mail/v2"

	"github.com/spec-kit/maintenance-ticket-service/internal/config"
)

// SMTPSender sends email through an SMTP relay with mandatory STARTTLS.
type SMTPSender struct {
	dialer *mail.Dialer
	from   string
}

// NewSMTPSender returns nil when no SMTP host is configured.
func NewSMTPSender(cfg config.NotificationConfig) *SMTPSender {
	if strings.TrimSpace(cfg.SMTPHost) == "" {
		return nil
	}
	d := mail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{ServerName: cfg.SMTPHost, MinVersion: tls.VersionTLS12}
	d.Timeout = cfg.DeliveryTimeout()
	return &SMTPSender{dialer: d, from: cfg.EmailFrom}
}

// Send delivers one message. The dial runs in the background so ctx can abandon it.
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	addr, err := netmail.ParseAddress(strings.TrimSpace(to))
	if err != nil {
		return fmt.Errorf("%w: email %q", ErrInvalidRecipient, to)
	}

	m := mail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", addr.Address)
	m.SetHeader("Subject", subject)
	m.SetDateHeader("Date", time.Now())
	m.SetBody("text/html", htmlBody)

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
