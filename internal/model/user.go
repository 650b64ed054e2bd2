package model

import (
	"fmt"
	"strings"
	"time"
)

// Role is an account's role in the application.
type Role string

const (
	RoleOrganizer   Role = "organizer"
	RoleParticipant Role = "participant"
	RoleAdmin       Role = "admin"
)

// ParseRole validates a persisted or submitted role.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleOrganizer, RoleParticipant, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q: %w", s, ErrInvalidUser)
	}
}

// User is an account record. Accounts are keyed by email.
//
// PasswordHash is opaque: credentials are verified by an external identity
// provider and the hash is only carried through persistence.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	Phone        string    `json:"phone,omitempty"`
	Organization string    `json:"organization,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Active       bool      `json:"active"`
	PasswordHash string    `json:"-"`
}

// Redacted returns a copy without secret fields.
func (u User) Redacted() User {
	u.PasswordHash = ""
	return u
}

// NormalizeEmail is the canonical form used as the account key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AsParticipant projects the account into a Participant.
func (u User) AsParticipant() Participant {
	return Participant{ID: u.ID, Name: u.Name, Email: u.Email}
}

// AsOrganizer projects the account into an Organizer with an empty list.
func (u User) AsOrganizer() *Organizer {
	return NewOrganizer(u.ID, u.Name, u.Email)
}
