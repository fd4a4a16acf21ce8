package auth

import "time"

// User is a platform account. Tenancy is expressed through memberships, not
// here; the same user may belong to several messes.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
