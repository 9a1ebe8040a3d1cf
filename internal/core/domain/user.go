package domain

import "time"

// User is an account row in the durable user store.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	LastLogin    *time.Time
}
