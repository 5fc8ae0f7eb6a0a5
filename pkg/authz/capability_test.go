package authz

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard-backend/pkg/apperr"
	"taskboard-backend/pkg/models"
)

func TestCanPerform(t *testing.T) {
	tests := []struct {
		name   string
		actor  models.Role
		action Action
		target models.Role
		want   bool
	}{
		{"admin creates manager", admin, ActionCreateUser, manager, true},
		{"admin creates member", admin, ActionCreateUser, member, true},
		{"admin cannot create admin", admin, ActionCreateUser, admin, false},
		{"manager creates member", manager, ActionCreateUser, member, true},
		{"manager cannot create manager", manager, ActionCreateUser, manager, false},
		{"member cannot create", member, ActionCreateUser, member, false},

		{"admin demotes to member", admin, ActionChangeRole, member, true},
		{"nobody promotes to admin", admin, ActionChangeRole, admin, false},
		{"manager cannot change roles", manager, ActionChangeRole, member, false},
		{"admin own identity", admin, ActionChangeOwnIdentity, none, false},

		{"admin deletes manager", admin, ActionDeleteUser, manager, true},
		{"admin cannot delete admin", admin, ActionDeleteUser, admin, false},
		{"manager cannot hard delete", manager, ActionDeleteUser, member, false},
		{"manager detaches member", manager, ActionDetachMember, member, true},
		{"member deletes self", member, ActionDeleteOwnAccount, none, true},
		{"admin cannot delete self", admin, ActionDeleteOwnAccount, none, false},

		{"admin assigns manager", admin, ActionAssignTask, manager, true},
		{"admin cannot assign member", admin, ActionAssignTask, member, false},
		{"manager assigns member", manager, ActionAssignTask, member, true},
		{"manager cannot assign manager", manager, ActionAssignTask, manager, false},
		{"member cannot assign", member, ActionAssignTask, member, false},
		{"admin edits any task", admin, ActionEditAnyTask, none, true},
		{"manager cannot edit any task", manager, ActionEditAnyTask, none, false},

		{"manager moderates queries", manager, ActionModerateQuery, none, true},
		{"member cannot moderate", member, ActionModerateQuery, none, false},
		{"unknown action", admin, Action("nope"), none, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanPerform(tt.actor, tt.action, tt.target))
		})
	}
}

func TestRequireReturnsForbidden(t *testing.T) {
	err := Require(manager, ActionAssignTask, manager)
	require.Error(t, err)

	var fe *apperr.ForbiddenError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, string(ActionAssignTask), fe.Action)
	assert.Equal(t, manager, fe.ActorRole)
	assert.Equal(t, manager, fe.TargetRole)

	require.NoError(t, Require(manager, ActionAssignTask, member))
}

func TestRequireRecordsDecisions(t *testing.T) {
	denied := decisions.WithLabelValues(string(ActionListOrgUsers), "denied")
	before := testutil.ToFloat64(denied)

	_ = Require(member, ActionListOrgUsers, none)

	assert.Equal(t, before+1, testutil.ToFloat64(denied))
}

func TestOrgGuard(t *testing.T) {
	assert.True(t, SameOrg("o1", "o1"))
	assert.False(t, SameOrg("o1", "o2"))
	assert.False(t, SameOrg("", ""))

	require.NoError(t, AssertSameOrg("o1", "o1"))
	err := AssertSameOrg("o1", "o2")
	assert.ErrorIs(t, err, &apperr.CrossOrgError{})
	assert.ErrorIs(t, err, &apperr.ForbiddenError{})

	actor := models.Actor{ID: "u1", Role: admin, OrganizationID: "o1"}
	err = AssertInOrg(actor, "task", "t1", "o2")
	var ce *apperr.CrossOrgError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "task", ce.Entity)
	assert.Equal(t, "o2", ce.TargetOrg)
}
