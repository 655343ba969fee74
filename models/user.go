package models

import "time"

// User represents a user account
type User struct {
	ID          int64     `json:"id"`
	Active      bool      `json:"active"`
	Username    string    `json:"username"` // This is the shard key
	Email       string    `json:"email"`
	SignInCount uint64    `json:"sign_in_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// BuildUser returns a new active user that has signed in once.
// The inputs are taken as given, nothing is validated.
func BuildUser(email, username string) *User {
	return &User{
		Active:      true,
		Username:    username,
		Email:       email,
		SignInCount: 1,
	}
}
