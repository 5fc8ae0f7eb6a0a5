// Package apperr defines the error taxonomy returned by the authorization and
// consistency core. Every kind is a distinct struct type so callers can branch
// with errors.As, or with errors.Is against a zero value of the kind:
//
//	if errors.Is(err, &apperr.ForbiddenError{}) { ... }
//
// CrossOrgError also matches ForbiddenError, since a boundary violation is a
// specialization of a denied action. None of these are retried by the core;
// only CascadeError is safe for a caller to retry as a whole.
package apperr

import (
	"errors"
	"fmt"

	"taskboard-backend/pkg/models"
)

// NotFoundError is returned when an entity is missing or a reference cannot be resolved.
type NotFoundError struct {
	Entity string
	ID     string
}

func NotFound(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s '%s' not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

// ForbiddenError is a role, ownership or visibility violation.
type ForbiddenError struct {
	Action     string
	ActorRole  models.Role
	TargetRole models.Role
	Reason     string
}

func Forbidden(action string, actorRole models.Role, reason string) *ForbiddenError {
	return &ForbiddenError{Action: action, ActorRole: actorRole, Reason: reason}
}

// WithTarget records the role of the entity the action was aimed at.
func (e *ForbiddenError) WithTarget(role models.Role) *ForbiddenError {
	e.TargetRole = role
	return e
}

func (e *ForbiddenError) Error() string {
	msg := fmt.Sprintf("forbidden: %s as %s", e.Action, e.ActorRole)
	if e.TargetRole != models.RoleNone {
		msg += fmt.Sprintf(" on %s", e.TargetRole)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *ForbiddenError) Is(target error) bool {
	_, ok := target.(*ForbiddenError)
	return ok
}

// CrossOrgError is an organization boundary violation.
type CrossOrgError struct {
	Entity    string
	ID        string
	ActorOrg  string
	TargetOrg string
}

func CrossOrg(entity, id, actorOrg, targetOrg string) *CrossOrgError {
	return &CrossOrgError{Entity: entity, ID: id, ActorOrg: actorOrg, TargetOrg: targetOrg}
}

func (e *CrossOrgError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("organization boundary violation: %s != %s", e.ActorOrg, e.TargetOrg)
	}
	return fmt.Sprintf("%s '%s' belongs to a different organization", e.Entity, e.ID)
}

func (e *CrossOrgError) Is(target error) bool {
	switch target.(type) {
	case *CrossOrgError, *ForbiddenError:
		return true
	}
	return false
}

// ConflictError is a uniqueness violation (duplicate email or organization name).
type ConflictError struct {
	Entity string
	Field  string
	Value  string
}

func Conflict(entity, field, value string) *ConflictError {
	return &ConflictError{Entity: entity, Field: field, Value: value}
}

func (e *ConflictError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s %s already in use", e.Entity, e.Field)
	}
	return fmt.Sprintf("%s %s '%s' already in use", e.Entity, e.Field, e.Value)
}

func (e *ConflictError) Is(target error) bool {
	_, ok := target.(*ConflictError)
	return ok
}

// InvalidSupervisorError is returned when a supervisor reference fails the
// role or organization constraints, or does not resolve.
type InvalidSupervisorError struct {
	SupervisorID string
	Reason       string
}

func InvalidSupervisor(id, reason string) *InvalidSupervisorError {
	return &InvalidSupervisorError{SupervisorID: id, Reason: reason}
}

func (e *InvalidSupervisorError) Error() string {
	return fmt.Sprintf("invalid supervisor '%s': %s", e.SupervisorID, e.Reason)
}

func (e *InvalidSupervisorError) Is(target error) bool {
	_, ok := target.(*InvalidSupervisorError)
	return ok
}

// ValidationError is malformed input that reached the core.
type ValidationError struct {
	Field   string
	Message string
}

func Validation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// CascadeError reports the stage at which a multi-step consistency operation failed.
type CascadeError struct {
	Operation string
	Stage     string
	EntityID  string
	Err       error
}

func Cascade(operation, stage, entityID string, err error) *CascadeError {
	return &CascadeError{Operation: operation, Stage: stage, EntityID: entityID, Err: err}
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("cascade %s(%s) failed at stage %q: %v", e.Operation, e.EntityID, e.Stage, e.Err)
}

func (e *CascadeError) Unwrap() error { return e.Err }

func (e *CascadeError) Is(target error) bool {
	_, ok := target.(*CascadeError)
	return ok
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, &NotFoundError{})
}

// IsForbidden reports whether err is a ForbiddenError or a CrossOrgError.
func IsForbidden(err error) bool {
	return errors.Is(err, &ForbiddenError{})
}
