package mailer

import (
	"context"
	"fmt"

	"github.com/diagnosis/seat-reservations/pkg/logger"
	"github.com/google/uuid"
)

// DevMailer logs every message instead of sending it.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) Send(ctx context.Context, msg Message) (string, error) {
	id := "dev-" + uuid.NewString()
	logger.InfoContext(ctx, "[DEV MAIL] email",
		"id", id,
		"to", msg.To,
		"name", msg.ToName,
		"subject", msg.Subject,
		"text", msg.Text,
	)
	fmt.Printf("\n----- DEV MAIL %s -----\nTo: %s\nSubject: %s\n\n%s\n-----------------------\n\n", id, msg.To, msg.Subject, msg.Text)
	return id, nil
}
