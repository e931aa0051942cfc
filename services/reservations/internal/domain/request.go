package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/diagnosis/seat-reservations/services/reservations/internal/utils"
)

// BookingRequest is the guest-submitted form. It is stored verbatim on the
// pending reservation so the confirmed booking uses exactly what was sent.
type BookingRequest struct {
	EventDate    string   `json:"eventDate"`
	SeatNumbers  []int    `json:"seatNumbers"`
	SeatLabels   []string `json:"seatLabels"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Phone        string   `json:"phone"`
	Gender       string   `json:"gender"`
	AgeRange     string   `json:"ageRange"`
	About        string   `json:"aboutYourself,omitempty"`
	AgreeToTerms bool     `json:"agreeToTerms"`
}

func (r *BookingRequest) Normalize() {
	r.EventDate = strings.TrimSpace(r.EventDate)
	r.Name = utils.NormalizeString(r.Name)
	r.Email = utils.NormalizeEmail(r.Email)
	r.Phone = utils.NormalizeString(r.Phone)
	r.Gender = strings.ToLower(utils.NormalizeString(r.Gender))
	r.AgeRange = utils.NormalizeString(r.AgeRange)
	r.About = utils.NormalizeString(r.About)
	for i, l := range r.SeatLabels {
		r.SeatLabels[i] = strings.ToUpper(strings.TrimSpace(l))
	}
}

// Validate checks request shape only. Business rules live in the workflow.
func (r *BookingRequest) Validate() error {
	switch {
	case r.EventDate == "":
		return Invalid("eventDate is required")
	case len(r.SeatLabels) == 0:
		return Invalid("seatLabels must contain at least 1 item")
	case len(r.SeatNumbers) > 0 && len(r.SeatNumbers) != len(r.SeatLabels):
		return Invalid("seatNumbers and seatLabels must have the same length")
	case len(r.Name) < 2 || len(r.Name) > 100:
		return Invalid("name must be between 2 and 100 characters")
	case !utils.IsValidEmail(r.Email):
		return Invalid("email must be a valid email")
	case !utils.IsValidPhone(r.Phone):
		return Invalid("phone must be 10 to 20 digits, spaces, +, - or parentheses")
	case !utils.OneOf(r.Gender, Genders):
		return Invalid(fmt.Sprintf("gender must be one of %s", strings.Join(Genders, ", ")))
	case !utils.OneOf(r.AgeRange, AgeRanges):
		return Invalid(fmt.Sprintf("ageRange must be one of %s", strings.Join(AgeRanges, ", ")))
	case len(r.About) > 500:
		return Invalid("aboutYourself must be at most 500 characters")
	case !r.AgreeToTerms:
		return Invalid("agreeToTerms must be true")
	}
	for _, n := range r.SeatNumbers {
		if n <= 0 {
			return Invalid("seatNumbers must be positive")
		}
	}
	return nil
}

// DayLayout is the wire and storage format of an event day.
const DayLayout = "2006-01-02"

// ParseDay reads "2006-01-02" or an RFC 3339 instant and returns the
// calendar day in loc, as midnight UTC.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DayLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return DayOf(t, loc), nil
}

// DayOf truncates an instant to its calendar day in loc.
func DayOf(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

func DayKey(day time.Time) string {
	return day.UTC().Format(DayLayout)
}

// ISOWeekday returns 1 for Monday through 7 for Sunday.
func ISOWeekday(day time.Time) int {
	wd := int(day.UTC().Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// StartInstant is the moment a session on day begins.
func StartInstant(day time.Time, loc *time.Location, offset time.Duration) time.Time {
	d := day.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc).Add(offset)
}
