package domain

import (
	"strings"
	"time"
)

type BookingStatus string

const (
	StatusAttending BookingStatus = "attending"
	StatusAttended  BookingStatus = "attended"
	StatusCancelled BookingStatus = "cancelled"
	StatusVoided    BookingStatus = "voided"
)

func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch BookingStatus(strings.ToLower(s)) {
	case StatusAttending, StatusAttended, StatusCancelled, StatusVoided:
		return BookingStatus(strings.ToLower(s)), true
	default:
		return "", false
	}
}

// HoldsSeats reports whether a booking in this status occupies its seats.
func (s BookingStatus) HoldsSeats() bool {
	return s == StatusAttending || s == StatusAttended
}

type SeatSelection struct {
	Numbers []int    `json:"seatNumbers"`
	Labels  []string `json:"seatLabels"`
}

func (s SeatSelection) Count() int { return len(s.Numbers) }

type Booking struct {
	ID           int64         `json:"id"`
	TicketID     string        `json:"ticketId"`
	ContactID    int64         `json:"contactId"`
	EventID      int64         `json:"eventId"`
	EventDate    time.Time     `json:"eventDate"`
	Seats        SeatSelection `json:"seats"`
	Status       BookingStatus `json:"status"`
	QRPayload    string        `json:"qrPayload"`
	CalendarLink string        `json:"calendarLink,omitempty"`
	CancelledAt  *time.Time    `json:"cancelledAt,omitempty"`
	CheckedInAt  *time.Time    `json:"checkedInAt,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`

	// ReservationToken and TokenIssuedMs authorize self-service cancellation.
	ReservationToken string `json:"-"`
	TokenIssuedMs    int64  `json:"-"`

	Contact *Contact `json:"contact,omitempty"`
}

// NewBooking is the insert shape produced by the booking workflow. The
// contact is upserted by email in the same transaction.
type NewBooking struct {
	TicketID         string
	Contact          Contact
	EventID          int64
	EventDate        time.Time
	Seats            SeatSelection
	QRPayload        string
	CalendarLink     string
	ReservationToken string
	TokenIssuedMs    int64
}

type BookingFilter struct {
	Search    string
	Status    *BookingStatus
	EventDate *time.Time
	Page      int
	Limit     int
}

func (f *BookingFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 10
	}
	f.Search = strings.TrimSpace(f.Search)
}

func (f BookingFilter) Offset() int { return (f.Page - 1) * f.Limit }

type PageMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func NewPageMeta(page, limit, total int) PageMeta {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return PageMeta{Page: page, Limit: limit, Total: total, TotalPages: pages}
}
