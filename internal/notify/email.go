package notify

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
)

// EmailConfig holds SMTP settings.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Currency string
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Email sends HTML mail through an SMTP relay. Users without an address or
// who opted out of email notifications are skipped.
type Email struct {
	cfg      EmailConfig
	sendMail sendMailFunc
}

// NewEmail returns an Email notifier.
func NewEmail(cfg EmailConfig) *Email {
	if cfg.Currency == "" {
		cfg.Currency = DefaultCurrency
	}
	return &Email{cfg: cfg, sendMail: smtp.SendMail}
}

// Notify implements Notifier.
func (e *Email) Notify(ctx context.Context, msg Message) error {
	if msg.User.Email == "" || !msg.User.EmailNotifications {
		return nil
	}

	html, err := renderHTML(msg, e.cfg.Currency)
	if err != nil {
		return err
	}
	raw := buildMail(e.cfg.From, msg.User.Email, subject(msg), html)

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}
	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))

	err = withContext(ctx, func() error {
		return e.sendMail(addr, auth, e.cfg.From, []string{msg.User.Email}, raw)
	})
	if err != nil {
		return fmt.Errorf("sending %s email to %s: %w", msg.Kind, msg.User.Email, err)
	}
	return nil
}

func buildMail(from, to, subj, html string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subj) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)
	return []byte(b.String())
}
