package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// Config describes an SMTP relay.
type Config struct {
	// Addr is host:port, e.g. "smtp.gmail.com:587".
	Addr     string
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTP delivers mail through an SMTP relay, upgrading with STARTTLS when
// the server offers it.
type SMTP struct {
	cfg  Config
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTP validates cfg and returns a sender.
func NewSMTP(cfg Config) (*SMTP, error) {
	if cfg.Addr == "" {
		return nil, errors.New("smtp address required")
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		return nil, fmt.Errorf("smtp address: %w", err)
	}
	if cfg.From == "" {
		return nil, errors.New("smtp sender required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMTP{cfg: cfg, send: smtp.SendMail}, nil
}

// Send delivers one HTML message. net/smtp has no context support, so ctx
// only bounds how long Send waits; an abandoned delivery may still finish.
func (s *SMTP) Send(ctx context.Context, to, subject, htmlBody string) error {
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return errors.New("header injection rejected")
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		host, _, _ := net.SplitHostPort(s.cfg.Addr)
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, host)
	}

	msg := buildMessage(s.cfg.From, to, subject, htmlBody)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.send(s.cfg.Addr, auth, s.cfg.From, []string{to}, msg)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildMessage(from, to, subject, htmlBody string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}

// LogMailer logs messages instead of sending them.
type LogMailer struct {
	Logger *slog.Logger
}

// Send logs the recipient and subject and always succeeds.
func (m LogMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "mail not sent (log mailer)",
		"to", to,
		"subject", subject,
		"bytes", len(htmlBody),
	)
	return nil
}
