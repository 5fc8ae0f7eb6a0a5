package authz

import (
	"taskboard-backend/pkg/apperr"
	"taskboard-backend/pkg/models"
)

// Action names a decision in the capability table.
type Action string

const (
	// ActionCreateUser: target is the role of the user being created.
	ActionCreateUser Action = "user.create"
	// ActionChangeRole: target is the new role being assigned.
	ActionChangeRole Action = "user.change_role"
	// ActionChangeOwnIdentity covers role or email changes an Admin makes to
	// their own record through the user-management path.
	ActionChangeOwnIdentity Action = "user.change_own_identity"
	// ActionUpdateUser: target is the current role of the user being edited.
	ActionUpdateUser       Action = "user.update"
	ActionDeleteUser       Action = "user.delete"
	ActionDeleteOwnAccount Action = "user.delete_self"
	ActionDetachMember     Action = "user.detach"
	ActionUpdateMember     Action = "user.update_member"
	ActionListOrgUsers     Action = "user.list_all"
	ActionListReports      Action = "user.list_reports"

	// ActionAssignTask: target is the assignee's role.
	ActionAssignTask       Action = "task.assign"
	ActionEditAnyTask      Action = "task.edit_any"
	ActionDeleteAnyTask    Action = "task.delete_any"
	ActionViewOrgTask      Action = "task.view_any"
	ActionViewManagedTasks Action = "task.list_managed"

	// ActionModerateQuery lets a role remove queries and responses it does not own.
	ActionModerateQuery Action = "query.moderate"

	ActionDeleteOrganization Action = "organization.delete"
)

type rule struct {
	allowed map[models.Role][]models.Role
	reason  string
}

var (
	admin   = models.RoleAdmin
	manager = models.RoleManager
	member  = models.RoleMember
	none    = models.RoleNone
)

// capabilities is the single source of truth for role decisions.
// Ownership checks (creator, assignee, raiser) live with the callers.
var capabilities = map[Action]rule{
	ActionCreateUser: {
		allowed: map[models.Role][]models.Role{admin: {manager, member}, manager: {member}},
		reason:  "admins create managers or members, managers create members",
	},
	ActionChangeRole: {
		allowed: map[models.Role][]models.Role{admin: {manager, member}},
		reason:  "nobody may promote a user to Admin",
	},
	ActionUpdateUser: {
		allowed: map[models.Role][]models.Role{admin: {admin, manager, member}},
		reason:  "only admins edit other users",
	},
	ActionChangeOwnIdentity: {
		allowed: map[models.Role][]models.Role{},
		reason:  "admins cannot change their own role or email here, use organization operations",
	},
	ActionDeleteUser: {
		allowed: map[models.Role][]models.Role{admin: {manager, member}},
		reason:  "only admins delete users",
	},
	ActionDeleteOwnAccount: {
		allowed: map[models.Role][]models.Role{manager: {none}, member: {none}},
		reason:  "admins can only leave by deleting the organization",
	},
	ActionDetachMember: {
		allowed: map[models.Role][]models.Role{manager: {member}},
		reason:  "managers may only detach members from their supervision",
	},
	ActionUpdateMember: {
		allowed: map[models.Role][]models.Role{manager: {member}},
		reason:  "managers may only update members",
	},
	ActionListOrgUsers: {
		allowed: map[models.Role][]models.Role{admin: {none}},
		reason:  "admins only",
	},
	ActionListReports: {
		allowed: map[models.Role][]models.Role{manager: {none}, admin: {none}},
		reason:  "managers or admins only",
	},
	ActionAssignTask: {
		allowed: map[models.Role][]models.Role{admin: {manager}, manager: {member}},
		reason:  "admins assign to managers, managers assign to members",
	},
	ActionEditAnyTask: {
		allowed: map[models.Role][]models.Role{admin: {none}},
		reason:  "only the creator or an admin may update this task",
	},
	ActionDeleteAnyTask: {
		allowed: map[models.Role][]models.Role{admin: {none}},
		reason:  "only the creator or an admin may delete this task",
	},
	ActionViewOrgTask: {
		allowed: map[models.Role][]models.Role{admin: {none}},
		reason:  "not involved in this task",
	},
	ActionViewManagedTasks: {
		allowed: map[models.Role][]models.Role{admin: {none}, manager: {none}},
		reason:  "only managers or admins have managed tasks",
	},
	ActionModerateQuery: {
		allowed: map[models.Role][]models.Role{admin: {none}, manager: {none}},
		reason:  "only admins, managers or the owner may remove this",
	},
	ActionDeleteOrganization: {
		allowed: map[models.Role][]models.Role{admin: {none}},
		reason:  "only the organization admin may delete it",
	},
}

// CanPerform answers whether actorRole may perform action against an entity
// of targetRole. Pass models.RoleNone for untargeted actions.
func CanPerform(actorRole models.Role, action Action, targetRole models.Role) bool {
	r, ok := capabilities[action]
	if !ok {
		return false
	}
	for _, t := range r.allowed[actorRole] {
		if t == targetRole {
			return true
		}
	}
	return false
}

// Require is CanPerform returning a ForbiddenError on denial.
func Require(actorRole models.Role, action Action, targetRole models.Role) error {
	allowed := CanPerform(actorRole, action, targetRole)
	recordDecision(action, allowed)
	if allowed {
		return nil
	}
	return apperr.Forbidden(string(action), actorRole, capabilities[action].reason).WithTarget(targetRole)
}
