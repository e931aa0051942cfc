package domain

type SeatInfo struct {
	Number      int    `json:"number"`
	Label       string `json:"label"`
	IsAvailable bool   `json:"isAvailable"`
}

// Availability is the advisory seat map for one event day. Pending holds
// are not subtracted; the authoritative check runs at hold and confirm time.
type Availability struct {
	EventDate         string     `json:"eventDate"`
	TotalSeats        int        `json:"totalSeats"`
	AvailableSeats    int        `json:"availableSeats"`
	BookedSeats       int        `json:"bookedSeats"`
	AllSeats          []SeatInfo `json:"allSeats"`
	AvailableSeatList []SeatInfo `json:"availableSeatList"`
	BookedSeatNumbers []int      `json:"bookedSeatNumbers"`
}
