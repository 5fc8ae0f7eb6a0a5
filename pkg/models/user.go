package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User represents a user in the system
type User struct {
	ID             string    `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	Email          string    `json:"email" db:"email"`
	PasswordHash   string    `json:"-" db:"password_hash"` // Never return password in JSON
	Role           Role      `json:"role" db:"role"`
	AvatarURL      string    `json:"avatar_url,omitempty" db:"avatar_url"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	SupervisorID   *string   `json:"supervisor_id,omitempty" db:"supervisor_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Supervisor returns the supervisor id, or "" when the user has none.
func (u *User) Supervisor() string {
	if u == nil || u.SupervisorID == nil {
		return ""
	}
	return *u.SupervisorID
}

// Ref returns the populated reference form of the user.
func (u *User) Ref() *UserRef {
	if u == nil {
		return nil
	}
	return &UserRef{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, AvatarURL: u.AvatarURL}
}

// UserRef is the subset of user fields returned when a reference is populated.
type UserRef struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Role      Role   `json:"role,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// UserView is a user with its supervisor and organization populated.
type UserView struct {
	User
	Supervisor       *UserRef `json:"supervisor,omitempty"`
	OrganizationName string   `json:"organization_name,omitempty"`
}

// Actor is the authenticated identity on whose behalf an operation runs.
type Actor struct {
	ID             string `json:"id"`
	Role           Role   `json:"role"`
	OrganizationID string `json:"organization_id"`
}

// ActorOf builds the actor descriptor for a stored user.
func ActorOf(u *User) Actor {
	return Actor{ID: u.ID, Role: u.Role, OrganizationID: u.OrganizationID}
}

// TokenClaims represents the JWT token claims
type TokenClaims struct {
	UserID         string `json:"id"`
	Email          string `json:"email"`
	Role           Role   `json:"role"`
	OrganizationID string `json:"organizationId"`
	jwt.RegisteredClaims
}

// Actor extracts the actor descriptor carried by the token.
func (c *TokenClaims) Actor() Actor {
	return Actor{ID: c.UserID, Role: c.Role, OrganizationID: c.OrganizationID}
}
