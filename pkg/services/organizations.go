package services

import (
	"context"
	"strings"

	"taskboard-backend/pkg/apperr"
	"taskboard-backend/pkg/authz"
	"taskboard-backend/pkg/database"
	"taskboard-backend/pkg/models"
)

// Registration is the input of RegisterOrganization.
type Registration struct {
	OrganizationName string
	AdminName        string
	Email            string
	Password         string
}

// RegisterOrganization creates an organization together with its first Admin.
func (s *Service) RegisterOrganization(ctx context.Context, in Registration) (*models.OrganizationView, error) {
	orgName := strings.TrimSpace(in.OrganizationName)
	adminName := strings.TrimSpace(in.AdminName)
	email := normalizeEmail(in.Email)
	switch {
	case orgName == "":
		return nil, apperr.Validation("organization_name", "organization name is required")
	case adminName == "":
		return nil, apperr.Validation("name", "name is required")
	case email == "":
		return nil, apperr.Validation("email", "email is required")
	}
	if err := validatePassword("password", in.Password); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	var view *models.OrganizationView
	err = s.db.WithTx(ctx, func(tx database.Store) error {
		org := &models.Organization{Name: orgName}
		if err := tx.CreateOrganization(ctx, org); err != nil {
			return err
		}
		admin := &models.User{
			Name:           adminName,
			Email:          email,
			PasswordHash:   hash,
			Role:           models.RoleAdmin,
			OrganizationID: org.ID,
		}
		if err := tx.CreateUser(ctx, admin); err != nil {
			return err
		}
		org.AdminID = &admin.ID
		if err := tx.UpdateOrganization(ctx, org); err != nil {
			return err
		}
		view = &models.OrganizationView{Organization: *org, Admin: admin.Ref()}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("organization_id", view.ID).WithField("admin_id", view.Admin.ID).Info("organization registered")
	return view, nil
}

// DeleteOrganization removes an organization and everything scoped to it.
// Only the Admin of that organization may.
func (s *Service) DeleteOrganization(ctx context.Context, actor models.Actor, orgID string) error {
	if err := authz.Require(actor.Role, authz.ActionDeleteOrganization, models.RoleNone); err != nil {
		return err
	}
	return s.db.WithTx(ctx, func(tx database.Store) error {
		org, err := tx.GetOrganization(ctx, orgID)
		if err != nil {
			return err
		}
		if err := authz.AssertInOrg(actor, "organization", org.ID, org.ID); err != nil {
			return err
		}
		if org.AdminID == nil || *org.AdminID != actor.ID {
			return apperr.Forbidden(string(authz.ActionDeleteOrganization), actor.Role, "only the organization admin may delete it")
		}
		return s.cascadeDeleteOrganization(ctx, tx, org.ID)
	})
}
