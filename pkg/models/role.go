package models

import "fmt"

// Role is the closed set of user roles inside an organization.
type Role string

const (
	RoleAdmin   Role = "Admin"
	RoleManager Role = "Manager"
	RoleMember  Role = "Member"

	// RoleNone marks "no target role" in capability lookups.
	RoleNone Role = ""
)

// Valid reports whether r is one of Admin, Manager or Member.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleMember:
		return true
	}
	return false
}

// CanSupervise reports whether a user with this role may be somebody's supervisor.
func (r Role) CanSupervise() bool {
	return r == RoleAdmin || r == RoleManager
}

func (r Role) String() string {
	if r == RoleNone {
		return "none"
	}
	return string(r)
}

// ParseRole converts a wire value into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return RoleNone, fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// TaskStatus is the closed set of task states. Any state may follow any other.
type TaskStatus string

const (
	StatusNotStarted         TaskStatus = "Not Started"
	StatusOngoing            TaskStatus = "Ongoing"
	StatusPartiallyCompleted TaskStatus = "Partially Completed"
	StatusCompleted          TaskStatus = "Completed"
)

// AllTaskStatuses lists every status in display order.
var AllTaskStatuses = []TaskStatus{
	StatusNotStarted,
	StatusOngoing,
	StatusPartiallyCompleted,
	StatusCompleted,
}

func (s TaskStatus) Valid() bool {
	for _, v := range AllTaskStatuses {
		if v == s {
			return true
		}
	}
	return false
}
