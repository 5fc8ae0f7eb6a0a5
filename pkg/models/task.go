package models

import "time"

// Task is a unit of work created by an Admin for a Manager or by a Manager for a Member.
type Task struct {
	ID             string     `json:"id" db:"id"`
	OrganizationID string     `json:"organization_id" db:"organization_id"`
	Title          string     `json:"title" db:"title"`
	Description    string     `json:"description,omitempty" db:"description"`
	Status         TaskStatus `json:"status" db:"status"`
	Timeline       *time.Time `json:"timeline,omitempty" db:"timeline"`
	CreatedBy      string     `json:"created_by" db:"created_by"`
	AssignedTo     string     `json:"assigned_to" db:"assigned_to"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// TaskPatch carries the non-status fields a creator or Admin may change.
// Nil fields are left untouched.
type TaskPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Timeline    *time.Time `json:"timeline,omitempty"`
	AssignedTo  *string    `json:"assigned_to,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Timeline == nil && p.AssignedTo == nil
}

// TaskView is a task with creator and assignee populated.
type TaskView struct {
	Task
	Creator  *UserRef `json:"creator,omitempty"`
	Assignee *UserRef `json:"assignee,omitempty"`
}
