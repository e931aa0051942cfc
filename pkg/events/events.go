package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/diagnosis/seat-reservations/pkg/logger"
	"github.com/nats-io/nats.go"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

// Decode unmarshals the message payload into v.
func (m *Message) Decode(v interface{}) error {
	return json.Unmarshal(m.Data, v)
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url,
		nats.Name("seat-reservations"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "bytes", len(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(wrap(msg))
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(wrap(msg))
	})
	return err
}

// Ping round-trips to the server. ctx must carry a deadline.
func (n *NATSEventBus) Ping(ctx context.Context) error {
	return n.conn.FlushWithContext(ctx)
}

// Drain lets in-flight handlers finish before the connection closes.
func (n *NATSEventBus) Drain() error {
	return n.conn.Drain()
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

func wrap(msg *nats.Msg) *Message {
	now := time.Now()
	id := msg.Header.Get(nats.MsgIdHdr)
	if id == "" {
		id = fmt.Sprintf("%d", now.UnixNano())
	}
	return &Message{
		Subject:   msg.Subject,
		Data:      msg.Data,
		Timestamp: now,
		ID:        id,
	}
}

// Subjects
const (
	BookingConfirmed  = "booking.confirmed"
	BookingCancelled  = "booking.cancelled"
	BookingVoided     = "booking.voided"
	BookingCheckedIn  = "booking.checked_in"
	BookingSeatMoved  = "booking.seat_reassigned"
	PendingSweptBatch = "pending.swept"

	NotifySend = "notify.send"
)

// Notification types carried in NotificationEvent.Type.
const (
	NotifyBookingConfirmation = "booking_confirmation"
	NotifyCancellation        = "cancellation_confirmation"
	NotifyVoided              = "booking_voided"
)

// Channels a NotificationEvent may be delivered over.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

type BookingConfirmedEvent struct {
	TicketID    string    `json:"ticket_id"`
	EventID     int64     `json:"event_id"`
	EventDate   string    `json:"event_date"`
	Email       string    `json:"email"`
	SeatNumbers []int     `json:"seat_numbers"`
	SeatLabels  []string  `json:"seat_labels"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

type BookingCancelledEvent struct {
	TicketID    string    `json:"ticket_id"`
	EventID     int64     `json:"event_id"`
	EventDate   string    `json:"event_date"`
	Email       string    `json:"email"`
	SeatNumbers []int     `json:"seat_numbers"`
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelled_at"`
}

type BookingCheckedInEvent struct {
	TicketID    string    `json:"ticket_id"`
	EventDate   string    `json:"event_date"`
	CheckedInAt time.Time `json:"checked_in_at"`
}

type SeatReassignedEvent struct {
	TicketID   string    `json:"ticket_id"`
	EventDate  string    `json:"event_date"`
	FromLabels []string  `json:"from_labels"`
	ToLabels   []string  `json:"to_labels"`
	MovedAt    time.Time `json:"moved_at"`
}

type PendingSweptEvent struct {
	Deleted int64     `json:"deleted"`
	SweptAt time.Time `json:"swept_at"`
}

// NotificationEvent is a delivery job for the notify service.
type NotificationEvent struct {
	Type      string            `json:"type"`
	Channels  []string          `json:"channels"`
	Email     string            `json:"email,omitempty"`
	Phone     string            `json:"phone,omitempty"`
	Name      string            `json:"name,omitempty"`
	Subject   string            `json:"subject,omitempty"`
	Text      string            `json:"text,omitempty"`
	HTML      string            `json:"html,omitempty"`
	SMS       string            `json:"sms,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func (e NotificationEvent) Wants(channel string) bool {
	for _, c := range e.Channels {
		if c == channel {
			return true
		}
	}
	return false
}
