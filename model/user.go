package model

import "time"

// User represents an administrator account.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Name         *string    `json:"name"`
	PasswordHash string     `json:"-"` // Not exposed in API responses
	Active       bool       `json:"-"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}
