package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard-backend/pkg/models"
)

func TestKindsMatchByType(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"not found", NotFound("task", "t1"), &NotFoundError{}, true},
		{"not found vs forbidden", NotFound("task", "t1"), &ForbiddenError{}, false},
		{"forbidden", Forbidden("task.update", models.RoleMember, ""), &ForbiddenError{}, true},
		{"cross org is forbidden", CrossOrg("user", "u1", "o1", "o2"), &ForbiddenError{}, true},
		{"cross org", CrossOrg("user", "u1", "o1", "o2"), &CrossOrgError{}, true},
		{"forbidden is not cross org", Forbidden("x", models.RoleAdmin, ""), &CrossOrgError{}, false},
		{"conflict", Conflict("user", "email", "a@b.c"), &ConflictError{}, true},
		{"invalid supervisor", InvalidSupervisor("s1", "wrong role"), &InvalidSupervisorError{}, true},
		{"validation", Validation("name", "required"), &ValidationError{}, true},
		{"cascade", Cascade("delete_user", "tasks", "u1", errors.New("boom")), &CascadeError{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestWrappedErrorsStillMatch(t *testing.T) {
	err := fmt.Errorf("load: %w", NotFound("query", "q1"))
	assert.True(t, IsNotFound(err))
	assert.False(t, IsForbidden(err))

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "q1", nf.ID)
}

func TestCascadeErrorUnwrapsCause(t *testing.T) {
	cause := NotFound("user", "u9")
	err := Cascade("delete_organization", "users", "o1", cause)

	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), `stage "users"`)
}

func TestForbiddenMessageCarriesContext(t *testing.T) {
	err := Forbidden("user.create", models.RoleManager, "managers may only create members").WithTarget(models.RoleManager)
	assert.Equal(t, "forbidden: user.create as Manager on Manager: managers may only create members", err.Error())
}
