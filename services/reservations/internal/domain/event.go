package domain

import "time"

type Event struct {
	ID             int64     `json:"id"`
	Date           time.Time `json:"date"`
	Time           string    `json:"time"`
	TotalSeats     int       `json:"totalSeats"`
	AvailableSeats int       `json:"availableSeats"`
	IsActive       bool      `json:"isActive"`
	Location       string    `json:"location,omitempty"`
	SessionName    string    `json:"sessionName,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type EventInput struct {
	Date        string `json:"date"`
	Time        string `json:"time"`
	TotalSeats  int    `json:"totalSeats"`
	Location    string `json:"location"`
	SessionName string `json:"sessionName"`
}

type EventPatch struct {
	Time        *string `json:"time"`
	TotalSeats  *int    `json:"totalSeats"`
	IsActive    *bool   `json:"isActive"`
	Location    *string `json:"location"`
	SessionName *string `json:"sessionName"`
}

// EventStats pairs an event with its live booking numbers.
type EventStats struct {
	Event
	BookedSeats    int     `json:"bookedSeats"`
	BookingCount   int     `json:"bookingCount"`
	IsFullyBooked  bool    `json:"isFullyBooked"`
	OccupancyRatio float64 `json:"occupancyRatio"`
}

type EventsSummary struct {
	UpcomingEvents int         `json:"upcomingEvents"`
	TotalCapacity  int         `json:"totalCapacity"`
	TotalBooked    int         `json:"totalBooked"`
	FullyBooked    int         `json:"fullyBooked"`
	NextEvent      *EventStats `json:"nextEvent,omitempty"`
	EventTimes     []string    `json:"eventTimes"`
}
