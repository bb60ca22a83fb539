package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	mail "github.com/go-mail/mail/v2"
	"go.uber.org/zap"

	"ideaflow/internal/model"
	"ideaflow/pkg/config"
	"ideaflow/pkg/util"
)

var errNoAddress = errors.New("recipient has no email address")

// EmailSender sends plain-text mail over SMTP with mandatory STARTTLS.
type EmailSender struct {
	from   string
	dialer *mail.Dialer
	send   func(*mail.Message) error
	logger *zap.Logger
}

func NewEmailSender(cfg config.MailConfig, logger *zap.Logger) *EmailSender {
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	d := mail.NewDialer(cfg.Host, port, cfg.User, cfg.Password)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.SkipTLSVerify,
	}
	s := &EmailSender{from: cfg.From, dialer: d, logger: logger}
	s.send = func(m *mail.Message) error { return d.DialAndSend(m) }
	return s
}

func (s *EmailSender) Channel() model.NotificationChannel {
	return model.ChannelEmail
}

func (s *EmailSender) compose(msg Message) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", s.from)
	if msg.FullName != "" {
		m.SetAddressHeader("To", msg.Email, msg.FullName)
	} else {
		m.SetHeader("To", msg.Email)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	return m
}

func (s *EmailSender) Send(ctx context.Context, msg Message) error {
	if msg.Email == "" {
		return util.Permanent(errNoAddress)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.send(s.compose(msg)); err != nil {
		s.logger.Warn("SMTP delivery failed",
			zap.String("user_id", msg.UserID.String()),
			zap.String("event_key", msg.EventKey),
			zap.Error(err),
		)
		return fmt.Errorf("send mail: %w", err)
	}
	s.logger.Debug("Email sent", zap.String("user_id", msg.UserID.String()), zap.String("subject", msg.Subject))
	return nil
}
