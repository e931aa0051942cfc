package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Reason is the machine-readable cause of a business rejection.
type Reason string

const (
	ReasonInvalidInput           Reason = "INVALID_INPUT"
	ReasonReservationsClosed     Reason = "RESERVATIONS_CLOSED"
	ReasonInvalidEventDate       Reason = "INVALID_EVENT_DATE"
	ReasonDuplicateBooking       Reason = "DUPLICATE_BOOKING"
	ReasonPendingBookingExists   Reason = "PENDING_BOOKING_EXISTS"
	ReasonTooManySeats           Reason = "TOO_MANY_SEATS"
	ReasonInvalidSeatSelection   Reason = "INVALID_SEAT_SELECTION"
	ReasonInsufficientSeats      Reason = "INSUFFICIENT_SEATS"
	ReasonSeatsUnavailable       Reason = "SEATS_UNAVAILABLE"
	ReasonSeatsNoLongerAvailable Reason = "SEATS_NO_LONGER_AVAILABLE"
	ReasonOTPNotFound            Reason = "OTP_NOT_FOUND"
	ReasonOTPExpired             Reason = "OTP_EXPIRED"
	ReasonOTPMismatch            Reason = "OTP_MISMATCH"
	ReasonOTPExhausted           Reason = "OTP_EXHAUSTED"
	ReasonOTPAlreadyUsed         Reason = "OTP_ALREADY_USED"
	ReasonPendingExpired         Reason = "PENDING_EXPIRED"
	ReasonEventNotFound          Reason = "EVENT_NOT_FOUND"
	ReasonEventExists            Reason = "EVENT_EXISTS"
	ReasonNotFound               Reason = "NOT_FOUND"
	ReasonAlreadyCheckedIn       Reason = "ALREADY_CHECKED_IN"
	ReasonTooLateToCancel        Reason = "TOO_LATE_TO_CANCEL"
	ReasonInvalidToken           Reason = "INVALID_TOKEN"
	ReasonNotificationFailure    Reason = "NOTIFICATION_FAILURE"
	ReasonUnauthorized           Reason = "UNAUTHORIZED"
	ReasonAccountLocked          Reason = "ACCOUNT_LOCKED"
	ReasonRateLimited            Reason = "RATE_LIMITED"
)

// Rejection is an expected, user-facing refusal. Workflows return it as an
// error value; anything else reaching the HTTP layer is a fault.
type Rejection struct {
	Reason  Reason
	Message string
	Detail  string
	Seats   []string
}

func (r *Rejection) Error() string {
	if r.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", r.Reason, r.Message, r.Detail)
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Message)
}

// Is matches any Rejection with the same Reason.
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	return ok && t.Reason == r.Reason
}

func Reject(reason Reason, message string) *Rejection {
	return &Rejection{Reason: reason, Message: message}
}

func Invalid(message string) *Rejection {
	return &Rejection{Reason: ReasonInvalidInput, Message: message}
}

// SeatConflict lists the clashing seat labels in the message.
func SeatConflict(reason Reason, labels []string) *Rejection {
	msg := fmt.Sprintf("Seats %s are already booked or pending", strings.Join(labels, ", "))
	if reason == ReasonSeatsNoLongerAvailable {
		msg = fmt.Sprintf("Seats %s were booked by someone else. Please select different seats.", strings.Join(labels, ", "))
	}
	return &Rejection{Reason: reason, Message: msg, Seats: labels}
}

func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// HasReason reports whether err is a Rejection carrying reason.
func HasReason(err error, reason Reason) bool {
	r, ok := AsRejection(err)
	return ok && r.Reason == reason
}
