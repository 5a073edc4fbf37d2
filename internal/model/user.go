package model

import "time"

// Role is the access level assigned to a user.  A user has at most one role;
// users without a role row resolve to RoleNone and get no dashboard access.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleClient Role = "client"
	RoleNone   Role = "none"
)

// Valid reports whether r is an assignable role.
func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleClient
}

// User represents an identity record as stored in the `users` table.
//
// Fields:
//
//	ID           – opaque identifier (UUID).
//	Email        – unique, normalized email address.
//	PasswordHash – bcrypt hashed password, never serialized.
//	CreatedAt    – timestamp of creation.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// RosterEntry is one selectable client on the owner dashboard.
type RosterEntry struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// RefreshToken models an entry in the `refresh_tokens` table.  The row ID
// doubles as the session id carried in access tokens, so revoking the row
// ends the session.  Only a SHA-256 hash of the raw token is stored.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}
