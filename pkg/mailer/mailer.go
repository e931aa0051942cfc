package mailer

import (
	"context"

	"github.com/diagnosis/seat-reservations/pkg/config"
	"github.com/diagnosis/seat-reservations/pkg/logger"
)

type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers one email and returns the provider message id when there
// is one.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// New picks the transport: dev logging, MailerSend when an API key is set,
// otherwise SMTP.
func New(cfg config.EmailConfig) Sender {
	switch {
	case cfg.DevMode:
		logger.Info("Email dev mode enabled, messages will be logged")
		return NewDevMailer()
	case cfg.MailerSendKey != "":
		return NewMailerSend(cfg.MailerSendKey, cfg.FromName, cfg.From)
	default:
		return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.From, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPUseTLS)
	}
}
