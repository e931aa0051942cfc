package domain

import "time"

type Contact struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Gender    string    `json:"gender"`
	AgeRange  string    `json:"ageRange"`
	About     string    `json:"about,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var (
	Genders   = []string{"male", "female", "other"}
	AgeRanges = []string{"18-25", "26-35", "36-45", "46-55", "55+"}
)
