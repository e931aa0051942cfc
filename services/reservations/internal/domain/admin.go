package domain

import "time"

type Admin struct {
	ID            int64      `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"`
	Role          string     `json:"role"`
	Phone         string     `json:"phone,omitempty"`
	IsActive      bool       `json:"isActive"`
	LoginAttempts int        `json:"-"`
	LockUntil     *time.Time `json:"-"`
	LastLogin     *time.Time `json:"lastLogin,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func (a *Admin) IsLocked(now time.Time) bool {
	return a.LockUntil != nil && now.Before(*a.LockUntil)
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Admin     *Admin    `json:"admin"`
}

// RegistrationStats is a typed aggregate for one event day.
type RegistrationStats struct {
	EventDate string       `json:"eventDate"`
	ByStatus  []CountByKey `json:"byStatus"`
	ByGender  []CountByKey `json:"byGender"`
	ByAge     []CountByKey `json:"byAgeRange"`
	Total     int          `json:"total"`
}

type CountByKey struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}
