package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diagnosis/seat-reservations/pkg/events"
	"github.com/diagnosis/seat-reservations/pkg/logger"
	"github.com/diagnosis/seat-reservations/pkg/mailer"
	"github.com/diagnosis/seat-reservations/pkg/sms"
)

const deliveryTimeout = 30 * time.Second

// Dispatcher delivers queued notification jobs. Each channel is attempted
// even when another one fails.
type Dispatcher struct {
	mail mailer.Sender
	sms  sms.Sender
}

func New(mail mailer.Sender, sender sms.Sender) *Dispatcher {
	return &Dispatcher{mail: mail, sms: sender}
}

// Start joins the queue group so each job reaches exactly one instance.
func (d *Dispatcher) Start(sub events.Subscriber, queue string) error {
	if err := sub.QueueSubscribe(events.NotifySend, queue, d.Handle); err != nil {
		return fmt.Errorf("subscribe %s: %w", events.NotifySend, err)
	}
	logger.Info("Listening for notification jobs", "subject", events.NotifySend, "queue", queue)
	return nil
}

func (d *Dispatcher) Handle(msg *events.Message) {
	var job events.NotificationEvent
	if err := msg.Decode(&job); err != nil {
		logger.Error("Dropping malformed notification job", "error", err, "message_id", msg.ID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	if err := d.Deliver(ctx, job); err != nil {
		logger.Error("Notification delivery failed", "error", err, "type", job.Type, "email", job.Email, "message_id", msg.ID)
		return
	}
	logger.Info("Notification delivered", "type", job.Type, "channels", job.Channels, "message_id", msg.ID)
}

func (d *Dispatcher) Deliver(ctx context.Context, job events.NotificationEvent) error {
	var errs []error

	if job.Wants(events.ChannelEmail) && job.Email != "" {
		id, err := d.mail.Send(ctx, mailer.Message{
			To:      job.Email,
			ToName:  job.Name,
			Subject: job.Subject,
			Text:    job.Text,
			HTML:    job.HTML,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("email: %w", err))
		} else {
			logger.Debug("Email sent", "type", job.Type, "provider_id", id)
		}
	}

	if job.Wants(events.ChannelSMS) && job.Phone != "" && job.SMS != "" {
		if err := d.sms.Send(ctx, job.Phone, job.SMS); err != nil {
			errs = append(errs, fmt.Errorf("sms: %w", err))
		}
	}

	return errors.Join(errs...)
}
