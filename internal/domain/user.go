package domain

import "time"

// User is an employee identity as seen by the auth layer.
type User struct {
	ID           string
	Username     string
	Name         string
	Phone        string
	Email        string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Credential is what the credential store hands the authenticator.
type Credential struct {
	Username     string
	PasswordHash string
	Roles        []string
}
