package service

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/diagnosis/seat-reservations/pkg/config"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/domain"
	"github.com/skip2/go-qrcode"
)

const calendarStamp = "20060102T150405Z"

// LinkBuilder derives the public links attached to a ticket.
type LinkBuilder struct {
	publicURL string
	title     string
	location  string
	loc       *time.Location
	start     time.Duration
	duration  time.Duration
}

func NewLinkBuilder(cfg config.BookingConfig) *LinkBuilder {
	return &LinkBuilder{
		publicURL: cfg.PublicURL,
		title:     cfg.EventTitle,
		location:  cfg.EventLocation,
		loc:       cfg.Location(),
		start:     cfg.StartOffset(),
		duration:  cfg.EventDuration,
	}
}

// VerificationURL is the QR payload. It carries only the ticket id; the
// booking is always re-read on verification.
func (l *LinkBuilder) VerificationURL(ticketID string) string {
	return l.publicURL + "/verify/" + url.PathEscape(ticketID)
}

func (l *LinkBuilder) EventStart(day time.Time) time.Time {
	return domain.StartInstant(day, l.loc, l.start)
}

func (l *LinkBuilder) Location() *time.Location { return l.loc }

// CalendarLink builds a Google Calendar template link for the session.
func (l *LinkBuilder) CalendarLink(day time.Time, labels []string, ticketID string) string {
	start := l.EventStart(day).UTC()
	end := start.Add(l.duration)

	q := url.Values{}
	q.Set("action", "TEMPLATE")
	q.Set("text", fmt.Sprintf("%s - Seat %s", l.title, strings.Join(labels, ", ")))
	q.Set("dates", start.Format(calendarStamp)+"/"+end.Format(calendarStamp))
	q.Set("details", fmt.Sprintf("Booking ID: %s\nLocation: %s", ticketID, l.location))
	q.Set("location", l.location)
	return "https://calendar.google.com/calendar/render?" + q.Encode()
}

// QRCodePNG renders payload as a PNG of size pixels.
func QRCodePNG(payload string, size int) ([]byte, error) {
	return qrcode.Encode(payload, qrcode.Medium, size)
}

// QRCodeDataURL renders payload as an inline image for HTML email.
func QRCodeDataURL(payload string) (string, error) {
	png, err := QRCodePNG(payload, 256)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
