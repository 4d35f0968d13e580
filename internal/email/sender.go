package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/textproto"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gopkg.in/gomail.v2"

	"PulseMail/internal/models"
)

// Mailer delivers one rendered message from an account.
type Mailer interface {
	Send(ctx context.Context, from models.Account, msg models.Message) error
}

// SMTPMailer sends over SMTP with STARTTLS and retries transient failures.
type SMTPMailer struct {
	Retries int
	// InitialInterval is the first backoff delay. Zero means 500ms.
	InitialInterval time.Duration
}

func NewSMTPMailer(retries int) *SMTPMailer {
	return &SMTPMailer{Retries: retries}
}

func buildMessage(from models.Account, msg models.Message) *gomail.Message {
	m := gomail.NewMessage()
	if from.Name != "" {
		m.SetAddressHeader("From", from.Email, from.Name)
	} else {
		m.SetHeader("From", from.Email)
	}
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)

	contentType := "text/plain"
	if msg.IsHTML {
		contentType = "text/html"
	}
	m.SetBody(contentType, msg.Body)

	for _, path := range msg.Attachments {
		m.Attach(path, gomail.Rename(filepath.Base(path)))
	}
	return m
}

func dialer(from models.Account) *gomail.Dialer {
	d := gomail.NewDialer(from.SMTPHost, from.SMTPPort, from.Email, from.Password)
	d.TLSConfig = &tls.Config{ServerName: from.SMTPHost}
	return d
}

// Send delivers msg, retrying with exponential backoff. Permanent SMTP
// rejections (5xx) are not retried.
func (s *SMTPMailer) Send(ctx context.Context, from models.Account, msg models.Message) error {
	m := buildMessage(from, msg)
	d := dialer(from)

	operation := func() error {
		if err := d.DialAndSend(m); err != nil {
			var tpErr *textproto.Error
			if errors.As(err, &tpErr) && tpErr.Code >= 500 {
				return backoff.Permanent(fmt.Errorf("smtp send error: %w", err))
			}
			return fmt.Errorf("smtp send error: %w", err)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	if s.InitialInterval > 0 {
		b.InitialInterval = s.InitialInterval
	}
	retries := s.Retries
	if retries < 0 {
		retries = 0
	}

	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx))
}

// Ping authenticates against the account's SMTP server without sending.
func (s *SMTPMailer) Ping(from models.Account) error {
	conn, err := dialer(from).Dial()
	if err != nil {
		return fmt.Errorf("smtp login to %s:%d: %w", from.SMTPHost, from.SMTPPort, err)
	}
	return conn.Close()
}
