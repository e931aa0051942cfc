package service

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/diagnosis/seat-reservations/pkg/events"
	"github.com/diagnosis/seat-reservations/pkg/logger"
	"github.com/diagnosis/seat-reservations/pkg/mailer"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// NotificationService renders guest messages. Verification codes go out
// synchronously because the caller must know whether they arrived; ticket
// notices are queued on the bus for the notify service.
type NotificationService interface {
	SendOTP(ctx context.Context, email, name, code string, expiresAt time.Time) error
	BookingConfirmed(ctx context.Context, b *domain.Booking)
	BookingCancelled(ctx context.Context, b *domain.Booking)
	BookingVoided(ctx context.Context, b *domain.Booking)
}

type notificationService struct {
	mailer mailer.Sender
	bus    events.Publisher
	links  *LinkBuilder
	title  string
	place  string
}

func NewNotificationService(m mailer.Sender, bus events.Publisher, links *LinkBuilder, title, location string) NotificationService {
	return &notificationService{mailer: m, bus: bus, links: links, title: title, place: location}
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func (s *notificationService) SendOTP(ctx context.Context, email, name, code string, expiresAt time.Time) error {
	html, err := render("otp.html", map[string]any{
		"Name":      name,
		"Code":      code,
		"ExpiresAt": expiresAt.In(s.links.Location()).Format("15:04 MST"),
	})
	if err != nil {
		return err
	}

	_, err = s.mailer.Send(ctx, mailer.Message{
		To:      email,
		ToName:  name,
		Subject: "Verify Your Email - Booking Confirmation",
		Text:    fmt.Sprintf("Your verification code is %s. It expires in a few minutes.", code),
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}

func (s *notificationService) BookingConfirmed(ctx context.Context, b *domain.Booking) {
	contact := contactOf(b)
	qr, err := QRCodeDataURL(b.QRPayload)
	if err != nil {
		logger.WarnContext(ctx, "Failed to render ticket QR code", "error", err, "ticket_id", b.TicketID)
	}

	html, err := render("confirmation.html", map[string]any{
		"Name":             contact.Name,
		"Title":            s.title,
		"TicketID":         b.TicketID,
		"Date":             b.EventDate.Format("Monday, January 2, 2006"),
		"Time":             s.links.EventStart(b.EventDate).Format("3:04 PM"),
		"Seats":            strings.Join(b.Seats.Labels, ", "),
		"Location":         s.place,
		"QRCode":           template.URL(qr),
		"CalendarLink":     template.URL(b.CalendarLink),
		"ReservationToken": b.ReservationToken,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to render confirmation email", "error", err, "ticket_id", b.TicketID)
		return
	}

	s.enqueue(ctx, events.NotificationEvent{
		Type:     events.NotifyBookingConfirmation,
		Channels: []string{events.ChannelEmail, events.ChannelSMS},
		Email:    contact.Email,
		Phone:    contact.Phone,
		Name:     contact.Name,
		Subject:  "Booking Confirmation - Event Hall Reservation",
		HTML:     html,
		SMS: fmt.Sprintf("Your event hall booking is confirmed! Ticket ID: %s. Please keep this for verification at the event.",
			b.TicketID),
		Data: ticketData(b),
	})
}

func (s *notificationService) BookingCancelled(ctx context.Context, b *domain.Booking) {
	s.release(ctx, b, events.NotifyCancellation,
		"Booking Cancelled - Event Hall Reservation",
		"Your booking has been cancelled",
		"Your booking has been cancelled and your seats have been released.")
}

func (s *notificationService) BookingVoided(ctx context.Context, b *domain.Booking) {
	s.release(ctx, b, events.NotifyVoided,
		"Booking Voided - Event Hall Reservation",
		"Your booking has been voided",
		"An administrator has voided your booking. Please contact us if you think this is a mistake.")
}

func (s *notificationService) release(ctx context.Context, b *domain.Booking, kind, subject, heading, body string) {
	contact := contactOf(b)
	html, err := render("cancellation.html", map[string]any{
		"Heading":  heading,
		"Body":     body,
		"Name":     contact.Name,
		"TicketID": b.TicketID,
		"Date":     b.EventDate.Format("Monday, January 2, 2006"),
		"Seats":    strings.Join(b.Seats.Labels, ", "),
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to render notice email", "error", err, "ticket_id", b.TicketID, "type", kind)
		return
	}

	s.enqueue(ctx, events.NotificationEvent{
		Type:     kind,
		Channels: []string{events.ChannelEmail},
		Email:    contact.Email,
		Name:     contact.Name,
		Subject:  subject,
		Text:     body,
		HTML:     html,
		Data:     ticketData(b),
	})
}

func (s *notificationService) enqueue(ctx context.Context, job events.NotificationEvent) {
	job.CreatedAt = time.Now().UTC()
	if job.Email == "" && job.Phone == "" {
		logger.WarnContext(ctx, "Notification has no recipient", "type", job.Type)
		return
	}
	if err := s.bus.Publish(ctx, events.NotifySend, job); err != nil {
		logger.ErrorContext(ctx, "Failed to queue notification", "error", err, "type", job.Type, "email", job.Email)
	}
}

func contactOf(b *domain.Booking) domain.Contact {
	if b.Contact == nil {
		return domain.Contact{}
	}
	return *b.Contact
}

func ticketData(b *domain.Booking) map[string]string {
	return map[string]string{
		"ticket_id":  b.TicketID,
		"event_date": domain.DayKey(b.EventDate),
		"seats":      strings.Join(b.Seats.Labels, ","),
	}
}
