package domain

import (
	"encoding/json"
	"time"
)

// Role constants define the allowed user roles.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// IsValidRole reports whether role is one of the known roles.
func IsValidRole(role string) bool {
	return role == RoleCustomer || role == RoleAdmin
}

// User is a registered account. Its ID is owned by the user store and never changes.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the client-facing view of a User.
type PublicUser struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Public returns the fields safe to send to a client.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// MarshalJSON renders only the public fields, so a User can never leak its
// password hash through an encoder.
func (u User) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.Public())
}
