package domain

import "time"

// PendingReservation holds a seat selection while the guest confirms the
// emailed code. Rows past ExpiresAt are ignored by every read.
type PendingReservation struct {
	TempID           string         `json:"tempId"`
	Email            string         `json:"email"`
	EventDate        time.Time      `json:"eventDate"`
	Seats            SeatSelection  `json:"seats"`
	Request          BookingRequest `json:"bookingData"`
	ReservationToken string         `json:"-"`
	TokenIssuedMs    int64          `json:"-"`
	CreatedAt        time.Time      `json:"createdAt"`
	ExpiresAt        time.Time      `json:"expiresAt"`
}

func (p *PendingReservation) IsLive(now time.Time) bool {
	return now.Before(p.ExpiresAt)
}

// OTPChallenge is the one-time code bound to a pending reservation.
type OTPChallenge struct {
	Email     string    `json:"email"`
	SessionID string    `json:"sessionId"`
	CodeHash  string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
	Verified  bool      `json:"verified"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"createdAt"`
}

// InitiateResult is returned when a new contact must confirm a code.
type InitiateResult struct {
	TempID           string    `json:"tempId"`
	ExpiresAt        time.Time `json:"expiresAt"`
	ReservationToken string    `json:"reservationToken"`
	RequiresOTP      bool      `json:"requiresOTP"`
}

type VerifyRequest struct {
	Email            string `json:"email"`
	OTP              string `json:"otp"`
	TempID           string `json:"tempId"`
	ReservationToken string `json:"reservationToken"`
}

type CancelRequest struct {
	TicketID         string `json:"ticketId"`
	ReservationToken string `json:"reservationToken"`
}

type ResendResult struct {
	TempID    string    `json:"tempId"`
	ExpiresAt time.Time `json:"expiresAt"`
}
