package services

import (
	"context"

	"taskboard-backend/pkg/apperr"
	"taskboard-backend/pkg/database"
	"taskboard-backend/pkg/models"
)

// The supervision graph is the manager -> member adjacency carried by
// User.SupervisorID. It is never stored anywhere else.

// SupervisorOf resolves the supervisor of u. It returns nil when u has none
// or the reference no longer resolves.
func SupervisorOf(ctx context.Context, db database.Store, u *models.User) (*models.UserRef, error) {
	if u.Supervisor() == "" {
		return nil, nil
	}
	sup, err := db.GetUserByID(ctx, u.Supervisor())
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sup.Ref(), nil
}

// DirectReports lists the members of orgID supervised by managerID.
func DirectReports(ctx context.Context, db database.Store, managerID, orgID string) ([]models.User, error) {
	return db.ListUsers(ctx, database.UserFilter{
		OrganizationID: orgID,
		Role:           models.RoleMember,
		SupervisorID:   managerID,
	})
}

// IsSupervisedBy reports whether userID's supervisor is supervisorID.
func IsSupervisedBy(ctx context.Context, db database.Store, userID, supervisorID string) (bool, error) {
	if supervisorID == "" {
		return false, nil
	}
	u, err := db.GetUserByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.Supervisor() == supervisorID, nil
}

// Detach clears the supervisor of every direct report of managerID.
func Detach(ctx context.Context, db database.Store, managerID string) (int64, error) {
	return db.ClearSupervisor(ctx, managerID)
}

// ValidateSupervisor resolves supervisorID and checks it may supervise a user
// of organization orgID.
func ValidateSupervisor(ctx context.Context, db database.Store, supervisorID, orgID string) (*models.User, error) {
	sup, err := db.GetUserByID(ctx, supervisorID)
	if isNotFound(err) {
		return nil, apperr.InvalidSupervisor(supervisorID, "supervisor not found")
	}
	if err != nil {
		return nil, err
	}
	if !sup.Role.CanSupervise() {
		return nil, apperr.InvalidSupervisor(supervisorID, "supervisor must be a Manager or Admin")
	}
	if sup.OrganizationID != orgID {
		return nil, apperr.InvalidSupervisor(supervisorID, "supervisor belongs to another organization")
	}
	return sup, nil
}

func isNotFound(err error) bool {
	return err != nil && apperr.IsNotFound(err)
}
