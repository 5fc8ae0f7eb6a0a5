package models

import "time"

// Organization is a tenant boundary. It is created together with its first Admin.
type Organization struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	AdminID   *string   `json:"admin_id,omitempty" db:"admin_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// OrganizationView is an organization with its admin reference populated.
type OrganizationView struct {
	Organization
	Admin *UserRef `json:"admin,omitempty"`
}
