package smtp

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/go-auth-api/internal/config"
	"github.com/go-auth-api/internal/domain"
)

// Mailer delivers account notifications over SMTP.
type Mailer interface {
	Send(ctx context.Context, to string, kind domain.NotificationKind, data domain.NotificationPayload) error
}

type mailer struct {
	host        string
	port        string
	from        string
	username    string
	password    string
	timeout     time.Duration
	frontendURL string
}

func NewMailer(cfg *config.Config) Mailer {
	return &mailer{
		host:        cfg.SMTPHost,
		port:        cfg.SMTPPort,
		from:        cfg.SMTPFrom,
		username:    cfg.SMTPUsername,
		password:    cfg.SMTPPassword,
		timeout:     cfg.SMTPTimeout,
		frontendURL: cfg.FrontendURL,
	}
}

func (m *mailer) Send(ctx context.Context, to string, kind domain.NotificationKind, data domain.NotificationPayload) error {
	subject, body := m.render(kind, data)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", m.from, to, subject, body)
	addr := net.JoinHostPort(m.host, m.port)

	dialer := &net.Dialer{Timeout: m.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	// The smtp client has no context support; a connection deadline bounds
	// every subsequent command.
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(m.timeout)
	}
	_ = conn.SetDeadline(deadline)

	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if m.username != "" {
		auth := smtp.PlainAuth("", m.username, m.password, m.host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(m.from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func (m *mailer) render(kind domain.NotificationKind, data domain.NotificationPayload) (subject, body string) {
	switch kind {
	case domain.NotifyVerificationCode:
		return "Verify your email",
			fmt.Sprintf("Hi %s,\r\n\r\nYour verification code is: %s\r\nIt expires in 15 minutes.", data.FirstName, data.Code)
	case domain.NotifyWelcome:
		return "Welcome!",
			fmt.Sprintf("Hi %s,\r\n\r\nYour email has been verified. Welcome aboard.", data.FirstName)
	case domain.NotifyPasswordReset:
		resetURL := fmt.Sprintf("%s/reset-password/%s", m.frontendURL, data.ResetToken)
		return "Reset your password",
			fmt.Sprintf("Hi %s,\r\n\r\nYou requested a password reset. Use the link below within 1 hour:\r\n\r\n%s\r\n\r\nIf you didn't request this, you can ignore this email.", data.FirstName, resetURL)
	case domain.NotifyPasswordChanged:
		return "Your password was changed",
			fmt.Sprintf("Hi %s,\r\n\r\nYour password was just changed. If this wasn't you, contact support immediately.", data.FirstName)
	default:
		return string(kind), ""
	}
}
