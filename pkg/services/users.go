package services

import (
	"context"
	"strings"

	"taskboard-backend/pkg/apperr"
	"taskboard-backend/pkg/authz"
	"taskboard-backend/pkg/database"
	"taskboard-backend/pkg/models"
)

const minPasswordLength = 6

// NewUser is the input of CreateUser and CreateMember.
type NewUser struct {
	Name         string
	Email        string
	Password     string
	Role         models.Role
	SupervisorID string
}

// UserPatch carries the fields an Admin may change on a user. Nil fields are
// left untouched; an empty SupervisorID clears the supervisor.
type UserPatch struct {
	Name         *string
	Email        *string
	Role         *models.Role
	AvatarURL    *string
	SupervisorID *string
}

func (p UserPatch) empty() bool {
	return p.Name == nil && p.Email == nil && p.Role == nil && p.AvatarURL == nil && p.SupervisorID == nil
}

// OrganizationUsers is the admin listing of an organization.
type OrganizationUsers struct {
	Managers []models.UserView `json:"managers"`
	Members  []models.UserView `json:"members"`
}

func validatePassword(field, password string) error {
	if len(password) < minPasswordLength {
		return apperr.Validation(field, "password must be at least 6 characters")
	}
	return nil
}

// loadUser fetches a user and checks it belongs to the actor's organization.
func loadUser(ctx context.Context, db database.Store, actor models.Actor, userID string) (*models.User, error) {
	u, err := db.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := authz.AssertInOrg(actor, "user", u.ID, u.OrganizationID); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) userView(ctx context.Context, db database.Store, u *models.User) (*models.UserView, error) {
	sup, err := SupervisorOf(ctx, db, u)
	if err != nil {
		return nil, err
	}
	return &models.UserView{User: *u, Supervisor: sup}, nil
}

// ListOrganizationUsers returns the managers and members of the actor's organization.
func (s *Service) ListOrganizationUsers(ctx context.Context, actor models.Actor) (*OrganizationUsers, error) {
	if err := authz.Require(actor.Role, authz.ActionListOrgUsers, models.RoleNone); err != nil {
		return nil, err
	}
	users, err := s.db.ListUsers(ctx, database.UserFilter{OrganizationID: actor.OrganizationID})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.Supervisor())
	}
	refs, err := populate(ctx, s.db, ids...)
	if err != nil {
		return nil, err
	}

	out := &OrganizationUsers{Managers: []models.UserView{}, Members: []models.UserView{}}
	for _, u := range users {
		view := models.UserView{User: u, Supervisor: refs[u.Supervisor()]}
		switch u.Role {
		case models.RoleManager:
			out.Managers = append(out.Managers, view)
		case models.RoleMember:
			out.Members = append(out.Members, view)
		}
	}
	return out, nil
}

// CreateUser adds a Manager or Member to the actor's organization. A Manager
// actor always becomes the supervisor of the user it creates.
func (s *Service) CreateUser(ctx context.Context, actor models.Actor, in NewUser) (*models.UserView, error) {
	if !in.Role.Valid() {
		return nil, apperr.Validation("role", "invalid role")
	}
	if err := authz.Require(actor.Role, authz.ActionCreateUser, in.Role); err != nil {
		return nil, err
	}
	if actor.Role == models.RoleManager {
		in.SupervisorID = actor.ID
	}

	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if name == "" {
		return nil, apperr.Validation("name", "name is required")
	}
	if email == "" {
		return nil, apperr.Validation("email", "email is required")
	}
	if err := validatePassword("password", in.Password); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	var view *models.UserView
	err = s.db.WithTx(ctx, func(tx database.Store) error {
		user := &models.User{
			Name:           name,
			Email:          email,
			PasswordHash:   hash,
			Role:           in.Role,
			OrganizationID: actor.OrganizationID,
		}
		if in.SupervisorID != "" {
			sup, err := ValidateSupervisor(ctx, tx, in.SupervisorID, actor.OrganizationID)
			if err != nil {
				return err
			}
			user.SupervisorID = &sup.ID
		}
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		view, err = s.userView(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("user_id", view.ID).WithField("role", view.Role).Info("user created")
	return view, nil
}

// CreateMember is the manager path of CreateUser: the role is Member and the
// supervisor is the actor.
func (s *Service) CreateMember(ctx context.Context, actor models.Actor, name, email, password string) (*models.UserView, error) {
	if actor.Role != models.RoleManager {
		return nil, apperr.Forbidden("user.create_member", actor.Role, "only managers create members under their supervision")
	}
	return s.CreateUser(ctx, actor, NewUser{Name: name, Email: email, Password: password, Role: models.RoleMember})
}

// UpdateUser is the admin path for changing any user of the organization.
// A role change runs the role-change cascade.
func (s *Service) UpdateUser(ctx context.Context, actor models.Actor, targetID string, patch UserPatch) (*models.UserView, error) {
	if patch.empty() {
		return nil, apperr.Validation("", "no fields to update")
	}

	var view *models.UserView
	err := s.db.WithTx(ctx, func(tx database.Store) error {
		target, err := loadUser(ctx, tx, actor, targetID)
		if err != nil {
			return err
		}
		if err := authz.Require(actor.Role, authz.ActionUpdateUser, target.Role); err != nil {
			return err
		}
		previous := *target
		updated := *target

		roleChanged := patch.Role != nil && *patch.Role != target.Role
		if patch.Email != nil {
			updated.Email = normalizeEmail(*patch.Email)
			if updated.Email == "" {
				return apperr.Validation("email", "email cannot be empty")
			}
		}
		emailChanged := updated.Email != target.Email

		if target.ID == actor.ID && (roleChanged || emailChanged) {
			if err := authz.Require(actor.Role, authz.ActionChangeOwnIdentity, target.Role); err != nil {
				return err
			}
		}
		if roleChanged {
			if !patch.Role.Valid() {
				return apperr.Validation("role", "invalid role")
			}
			if err := authz.Require(actor.Role, authz.ActionChangeRole, *patch.Role); err != nil {
				return err
			}
			updated.Role = *patch.Role
		}
		if emailChanged {
			if other, err := tx.GetUserByEmail(ctx, updated.Email); err == nil && other.ID != target.ID {
				return apperr.Conflict("user", "email", updated.Email)
			} else if err != nil && !isNotFound(err) {
				return err
			}
		}

		if patch.Name != nil {
			updated.Name = strings.TrimSpace(*patch.Name)
			if updated.Name == "" {
				return apperr.Validation("name", "name cannot be empty")
			}
		}
		if patch.AvatarURL != nil {
			updated.AvatarURL = *patch.AvatarURL
		}

		switch {
		case patch.SupervisorID != nil && *patch.SupervisorID != "":
			if *patch.SupervisorID == target.ID {
				return apperr.InvalidSupervisor(target.ID, "a user cannot supervise themselves")
			}
			sup, err := ValidateSupervisor(ctx, tx, *patch.SupervisorID, target.OrganizationID)
			if err != nil {
				return err
			}
			updated.SupervisorID = &sup.ID
		case patch.SupervisorID != nil:
			updated.SupervisorID = nil
		case roleChanged && updated.Role != models.RoleMember:
			updated.SupervisorID = nil
		}

		if roleChanged {
			if err := s.cascadeChangeRole(ctx, tx, &previous, &updated); err != nil {
				return err
			}
		} else if err := tx.UpdateUser(ctx, &updated); err != nil {
			return err
		}
		view, err = s.userView(ctx, tx, &updated)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// DeleteUser is the admin path for removing a user of the organization.
func (s *Service) DeleteUser(ctx context.Context, actor models.Actor, targetID string) error {
	return s.db.WithTx(ctx, func(tx database.Store) error {
		target, err := loadUser(ctx, tx, actor, targetID)
		if err != nil {
			return err
		}
		if target.ID == actor.ID {
			return apperr.Forbidden(string(authz.ActionDeleteUser), actor.Role,
				"admins cannot delete their own account, delete the organization instead").WithTarget(target.Role)
		}
		if err := authz.Require(actor.Role, authz.ActionDeleteUser, target.Role); err != nil {
			return err
		}
		return s.cascadeDeleteUser(ctx, tx, target)
	})
}

// ListDirectReports lists the members supervised by the actor.
func (s *Service) ListDirectReports(ctx context.Context, actor models.Actor) ([]models.User, error) {
	if err := authz.Require(actor.Role, authz.ActionListReports, models.RoleNone); err != nil {
		return nil, err
	}
	return DirectReports(ctx, s.db, actor.ID, actor.OrganizationID)
}

// loadReport fetches targetID and checks it is a direct report of the actor.
func loadReport(ctx context.Context, db database.Store, actor models.Actor, targetID string) (*models.User, error) {
	target, err := loadUser(ctx, db, actor, targetID)
	if err != nil {
		return nil, err
	}
	supervised, err := IsSupervisedBy(ctx, db, target.ID, actor.ID)
	if err != nil {
		return nil, err
	}
	if !supervised {
		return nil, apperr.Forbidden("user.manage_report", actor.Role, "user is not under your supervision").WithTarget(target.Role)
	}
	return target, nil
}

// UpdateMember lets a manager change the name, avatar or supervisor of a
// direct report. Email and role are not theirs to change.
func (s *Service) UpdateMember(ctx context.Context, actor models.Actor, targetID string, patch UserPatch) (*models.UserView, error) {
	if patch.Email != nil {
		return nil, apperr.Forbidden("user.update_member_email", actor.Role, "managers cannot update member email")
	}
	if patch.Role != nil {
		return nil, apperr.Forbidden("user.update_member_role", actor.Role, "managers cannot update member role")
	}
	if patch.empty() {
		return nil, apperr.Validation("", "no fields to update")
	}

	var view *models.UserView
	err := s.db.WithTx(ctx, func(tx database.Store) error {
		target, err := loadReport(ctx, tx, actor, targetID)
		if err != nil {
			return err
		}
		if err := authz.Require(actor.Role, authz.ActionUpdateMember, target.Role); err != nil {
			return err
		}
		if patch.Name != nil {
			target.Name = strings.TrimSpace(*patch.Name)
			if target.Name == "" {
				return apperr.Validation("name", "name cannot be empty")
			}
		}
		if patch.AvatarURL != nil {
			target.AvatarURL = *patch.AvatarURL
		}
		if patch.SupervisorID != nil {
			if *patch.SupervisorID == "" {
				target.SupervisorID = nil
			} else {
				sup, err := ValidateSupervisor(ctx, tx, *patch.SupervisorID, target.OrganizationID)
				if err != nil {
					return err
				}
				target.SupervisorID = &sup.ID
			}
		}
		if err := tx.UpdateUser(ctx, target); err != nil {
			return err
		}
		view, err = s.userView(ctx, tx, target)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// RemoveFromSupervision detaches one direct report from the actor. The user is kept.
func (s *Service) RemoveFromSupervision(ctx context.Context, actor models.Actor, targetID string) error {
	return s.db.WithTx(ctx, func(tx database.Store) error {
		target, err := loadReport(ctx, tx, actor, targetID)
		if err != nil {
			return err
		}
		if err := authz.Require(actor.Role, authz.ActionDetachMember, target.Role); err != nil {
			return err
		}
		target.SupervisorID = nil
		return tx.UpdateUser(ctx, target)
	})
}

// GetProfile returns the actor's own record with organization and supervisor populated.
func (s *Service) GetProfile(ctx context.Context, actor models.Actor) (*models.UserView, error) {
	u, err := s.db.GetUserByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	view, err := s.userView(ctx, s.db, u)
	if err != nil {
		return nil, err
	}
	if org, err := s.db.GetOrganization(ctx, u.OrganizationID); err == nil {
		view.OrganizationName = org.Name
	} else if !isNotFound(err) {
		return nil, err
	}
	return view, nil
}

// UpdateProfile changes the actor's own name and avatar.
func (s *Service) UpdateProfile(ctx context.Context, actor models.Actor, name, avatarURL *string) (*models.UserView, error) {
	if name == nil && avatarURL == nil {
		return nil, apperr.Validation("", "no valid fields provided to update")
	}

	var view *models.UserView
	err := s.db.WithTx(ctx, func(tx database.Store) error {
		u, err := tx.GetUserByID(ctx, actor.ID)
		if err != nil {
			return err
		}
		if name != nil {
			u.Name = strings.TrimSpace(*name)
			if u.Name == "" {
				return apperr.Validation("name", "name cannot be empty")
			}
		}
		if avatarURL != nil {
			u.AvatarURL = *avatarURL
		}
		if err := tx.UpdateUser(ctx, u); err != nil {
			return err
		}
		view, err = s.userView(ctx, tx, u)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// ChangePassword replaces the actor's password after checking the old one.
func (s *Service) ChangePassword(ctx context.Context, actor models.Actor, oldPassword, newPassword string) error {
	if err := validatePassword("new_password", newPassword); err != nil {
		return err
	}
	return s.db.WithTx(ctx, func(tx database.Store) error {
		u, err := tx.GetUserByID(ctx, actor.ID)
		if err != nil {
			return err
		}
		ok, err := s.hasher.Verify(u.PasswordHash, oldPassword)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Forbidden("user.change_password", actor.Role, "old password is incorrect")
		}
		hash, err := s.hasher.Hash(newPassword)
		if err != nil {
			return err
		}
		u.PasswordHash = hash
		return tx.UpdateUser(ctx, u)
	})
}

// DeleteOwnAccount removes the actor through the user deletion cascade.
// Admins leave by deleting their organization.
func (s *Service) DeleteOwnAccount(ctx context.Context, actor models.Actor) error {
	if err := authz.Require(actor.Role, authz.ActionDeleteOwnAccount, models.RoleNone); err != nil {
		return err
	}
	return s.db.WithTx(ctx, func(tx database.Store) error {
		u, err := tx.GetUserByID(ctx, actor.ID)
		if err != nil {
			return err
		}
		return s.cascadeDeleteUser(ctx, tx, u)
	})
}
