package domain

import (
	"fmt"
	"time"

	"github.com/diagnosis/seat-reservations/services/reservations/internal/seatgrid"
)

type SystemSettings struct {
	ReservationOpenDate  time.Time `json:"reservationOpenDate" yaml:"reservationOpenDate"`
	ReservationCloseDate time.Time `json:"reservationCloseDate" yaml:"reservationCloseDate"`
	DefaultTotalSeats    int       `json:"defaultTotalSeats" yaml:"defaultTotalSeats"`
	EventTimes           []string  `json:"eventTimes" yaml:"eventTimes"`
	WorkingDays          []int     `json:"workingDays" yaml:"workingDays"`
	MaxSeatsPerUser      int       `json:"maxSeatsPerUser" yaml:"maxSeatsPerUser"`
	MinCancellationHours int       `json:"minCancellationHours" yaml:"minCancellationHours"`
	UpdatedAt            time.Time `json:"updatedAt" yaml:"-"`
}

// DefaultSettings opens reservations for a year starting at now.
func DefaultSettings(now time.Time) SystemSettings {
	return SystemSettings{
		ReservationOpenDate:  now.UTC().Truncate(24 * time.Hour),
		ReservationCloseDate: now.UTC().AddDate(1, 0, 0),
		DefaultTotalSeats:    100,
		EventTimes:           []string{"10:00 AM"},
		WorkingDays:          []int{1, 2, 3, 4, 5},
		MaxSeatsPerUser:      2,
		MinCancellationHours: 2,
	}
}

func (s SystemSettings) IsOpen(now time.Time) bool {
	return !now.Before(s.ReservationOpenDate) && !now.After(s.ReservationCloseDate)
}

func (s SystemSettings) IsWorkingDay(day time.Time) bool {
	wd := ISOWeekday(day)
	for _, d := range s.WorkingDays {
		if d == wd {
			return true
		}
	}
	return false
}

func (s SystemSettings) EventTime() string {
	if len(s.EventTimes) > 0 {
		return s.EventTimes[0]
	}
	return "10:00 AM"
}

func (s SystemSettings) Validate() error {
	switch {
	case s.ReservationCloseDate.Before(s.ReservationOpenDate):
		return Invalid("reservationCloseDate must not be before reservationOpenDate")
	case s.DefaultTotalSeats < 1:
		return Invalid("defaultTotalSeats must be at least 1")
	case s.DefaultTotalSeats > seatgrid.MaxSeats:
		return Invalid(fmt.Sprintf("defaultTotalSeats must be at most %d", seatgrid.MaxSeats))
	case s.MaxSeatsPerUser < 1:
		return Invalid("maxSeatsPerUser must be at least 1")
	case s.MinCancellationHours < 0:
		return Invalid("minCancellationHours must not be negative")
	case len(s.WorkingDays) == 0:
		return Invalid("workingDays must not be empty")
	}
	for _, d := range s.WorkingDays {
		if d < 1 || d > 7 {
			return Invalid(fmt.Sprintf("workingDays entry %d must be between 1 and 7", d))
		}
	}
	return nil
}

type SettingsPatch struct {
	ReservationOpenDate  *time.Time `json:"reservationOpenDate"`
	ReservationCloseDate *time.Time `json:"reservationCloseDate"`
	DefaultTotalSeats    *int       `json:"defaultTotalSeats"`
	EventTimes           []string   `json:"eventTimes"`
	WorkingDays          []int      `json:"workingDays"`
	MaxSeatsPerUser      *int       `json:"maxSeatsPerUser"`
	MinCancellationHours *int       `json:"minCancellationHours"`
}

func (s SystemSettings) Apply(p SettingsPatch) SystemSettings {
	if p.ReservationOpenDate != nil {
		s.ReservationOpenDate = *p.ReservationOpenDate
	}
	if p.ReservationCloseDate != nil {
		s.ReservationCloseDate = *p.ReservationCloseDate
	}
	if p.DefaultTotalSeats != nil {
		s.DefaultTotalSeats = *p.DefaultTotalSeats
	}
	if p.EventTimes != nil {
		s.EventTimes = p.EventTimes
	}
	if p.WorkingDays != nil {
		s.WorkingDays = p.WorkingDays
	}
	if p.MaxSeatsPerUser != nil {
		s.MaxSeatsPerUser = *p.MaxSeatsPerUser
	}
	if p.MinCancellationHours != nil {
		s.MinCancellationHours = *p.MinCancellationHours
	}
	return s
}
