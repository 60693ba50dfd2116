package domain

import (
	"time"

	"github.com/google/uuid"
)

// Operator is an authenticated shop account. It owns every rate, rule and bill.
type Operator struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// LoginAttempt records one login attempt for lockout accounting.
type LoginAttempt struct {
	Username  string
	IPAddress string
	Success   bool
}

// GuardResult is the outcome of a request guard check.
type GuardResult struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Guard   string `json:"guard,omitempty"`
}
