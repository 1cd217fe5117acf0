package domain

import "time"

// User is the account record shared by every role.
type User struct {
	ID           int64
	Email        string
	MobileNumber string
	PasswordHash string
	Role         Role
	IsVerified   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
