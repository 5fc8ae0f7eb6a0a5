package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard-backend/pkg/apperr"
	"taskboard-backend/pkg/database"
	"taskboard-backend/pkg/models"
)

func TestCreateTask_RolePairs(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()

		otherManager, err := f.svc.CreateUser(ctx, f.admin, NewUser{Name: "Mo", Email: "mo@acme.io", Password: "secret1", Role: models.RoleManager})
		require.NoError(t, err)

		tests := []struct {
			name     string
			actor    models.Actor
			assignee string
			allowed  bool
		}{
			{"admin to manager", f.admin, f.manager.ID, true},
			{"manager to member", f.manager, f.member.ID, true},
			{"admin to member", f.admin, f.member.ID, false},
			{"manager to manager", f.manager, otherManager.ID, false},
			{"manager to admin", f.manager, f.admin.ID, false},
			{"member to member", f.member, f.member.ID, false},
			{"member to manager", f.member, f.manager.ID, false},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				task, err := f.svc.CreateTask(ctx, tt.actor, NewTask{Title: "t", AssigneeID: tt.assignee})
				if !tt.allowed {
					assert.True(t, isForbidden(err), "got %v", err)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, models.StatusNotStarted, task.Status)
				assert.Equal(t, tt.actor.ID, task.CreatedBy)
				assert.Equal(t, tt.actor.OrganizationID, task.OrganizationID)
				require.NotNil(t, task.Assignee)
				assert.Equal(t, tt.assignee, task.Assignee.ID)
			})
		}

		// every persisted task satisfies the role pair
		tasks, err := f.store.ListTasks(ctx, database.TaskFilter{OrganizationID: f.admin.OrganizationID})
		require.NoError(t, err)
		for _, task := range tasks {
			creator, assignee := f.user(t, task.CreatedBy), f.user(t, task.AssignedTo)
			switch creator.Role {
			case models.RoleAdmin:
				assert.Equal(t, models.RoleManager, assignee.Role)
			case models.RoleManager:
				assert.Equal(t, models.RoleMember, assignee.Role)
			default:
				t.Fatalf("task created by %s", creator.Role)
			}
		}
	})
}

func TestCreateTask_CrossOrganization(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()

		_, err := f.svc.CreateTask(ctx, f.manager, NewTask{Title: "t", AssigneeID: f.betaMember.ID})
		assert.True(t, errors.Is(err, &apperr.CrossOrgError{}), "got %v", err)

		_, err = f.svc.CreateTask(ctx, f.manager, NewTask{Title: "t", AssigneeID: "missing"})
		assert.True(t, apperr.IsNotFound(err))

		_, err = f.svc.CreateTask(ctx, f.manager, NewTask{Title: "  ", AssigneeID: f.member.ID})
		assert.True(t, errors.Is(err, &apperr.ValidationError{}))

		tasks, err := f.store.ListTasks(ctx, database.TaskFilter{CreatedBy: f.manager.ID})
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})
}

func TestUpdateTask(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		task := f.task(t, f.manager, f.member.ID)

		title := "renamed"
		_, err := f.svc.UpdateTask(ctx, f.member, task.ID, models.TaskPatch{Title: &title})
		assert.True(t, isForbidden(err), "assignee is not the creator")

		deadline := time.Date(2031, 5, 1, 0, 0, 0, 0, time.UTC)
		view, err := f.svc.UpdateTask(ctx, f.manager, task.ID, models.TaskPatch{Title: &title, Timeline: &deadline})
		require.NoError(t, err)
		assert.Equal(t, "renamed", view.Title)
		assert.Equal(t, models.StatusNotStarted, view.Status)

		desc := "by admin"
		_, err = f.svc.UpdateTask(ctx, f.admin, task.ID, models.TaskPatch{Description: &desc})
		require.NoError(t, err)

		// reassignment is checked against the creator's role, even when an admin edits
		manager := f.manager.ID
		_, err = f.svc.UpdateTask(ctx, f.admin, task.ID, models.TaskPatch{AssignedTo: &manager})
		assert.True(t, isForbidden(err))

		beta := f.betaMember.ID
		_, err = f.svc.UpdateTask(ctx, f.manager, task.ID, models.TaskPatch{AssignedTo: &beta})
		assert.True(t, errors.Is(err, &apperr.CrossOrgError{}))

		other, err := f.svc.CreateMember(ctx, f.manager, "Zed", "zed@acme.io", "secret1")
		require.NoError(t, err)
		view, err = f.svc.UpdateTask(ctx, f.manager, task.ID, models.TaskPatch{AssignedTo: &other.ID})
		require.NoError(t, err)
		assert.Equal(t, other.ID, view.AssignedTo)

		_, err = f.svc.UpdateTask(ctx, f.betaAdmin, task.ID, models.TaskPatch{Title: &title})
		assert.True(t, errors.Is(err, &apperr.CrossOrgError{}))
	})
}

func TestUpdateStatus_AnyTransitionByAssignee(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		task := f.task(t, f.manager, f.member.ID)

		_, err := f.svc.UpdateStatus(ctx, f.manager, task.ID, models.StatusCompleted)
		assert.True(t, isForbidden(err), "creator cannot set status")

		for _, status := range []models.TaskStatus{
			models.StatusCompleted, models.StatusNotStarted, models.StatusPartiallyCompleted, models.StatusOngoing, models.StatusNotStarted,
		} {
			updated, err := f.svc.UpdateStatus(ctx, f.member, task.ID, status)
			require.NoError(t, err)
			assert.Equal(t, status, updated.Status)
		}

		_, err = f.svc.UpdateStatus(ctx, f.member, task.ID, models.TaskStatus("Blocked"))
		assert.True(t, errors.Is(err, &apperr.ValidationError{}))
	})
}

func TestDeleteTask_RemovesQueries(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		task := f.task(t, f.manager, f.member.ID)
		_, err := f.svc.RaiseQuery(ctx, f.member, task.ID, "deadline?")
		require.NoError(t, err)

		assert.True(t, isForbidden(f.svc.DeleteTask(ctx, f.member, task.ID)))
		require.NoError(t, f.svc.DeleteTask(ctx, f.manager, task.ID))

		_, err = f.store.GetTask(ctx, task.ID)
		assert.True(t, apperr.IsNotFound(err))
		queries, err := f.store.ListQueries(ctx, database.QueryFilter{TaskIDs: []string{task.ID}})
		require.NoError(t, err)
		assert.Empty(t, queries)

		other := f.task(t, f.manager, f.member.ID)
		require.NoError(t, f.svc.DeleteTask(ctx, f.admin, other.ID), "admin may delete any task")
	})
}

func TestTaskReads(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		task := f.task(t, f.manager, f.member.ID)
		f.task(t, f.admin, f.manager.ID)

		managed, err := f.svc.ListManagedTasks(ctx, f.manager)
		require.NoError(t, err)
		require.Len(t, managed, 1)
		assert.Equal(t, "Xia", managed[0].Assignee.Name)
		assert.Equal(t, "Max", managed[0].Creator.Name)

		_, err = f.svc.ListManagedTasks(ctx, f.member)
		assert.True(t, isForbidden(err))

		mine, err := f.svc.ListAssignedTasks(ctx, f.manager)
		require.NoError(t, err)
		assert.Len(t, mine, 1)

		_, err = f.svc.GetTask(ctx, f.member, task.ID)
		require.NoError(t, err)
		_, err = f.svc.GetTask(ctx, f.admin, task.ID)
		require.NoError(t, err)

		outsider, err := f.svc.CreateMember(ctx, f.manager, "Zed", "zed@acme.io", "secret1")
		require.NoError(t, err)
		_, err = f.svc.GetTask(ctx, models.ActorOf(&outsider.User), task.ID)
		assert.True(t, isForbidden(err))
	})
}

func TestTaskWrites_UseStoredActor(t *testing.T) {
	t.Run("demoted manager cannot create", func(t *testing.T) {
		eachBackend(t, func(t *testing.T, f *fixture) {
			ctx := context.Background()
			stale := f.manager

			member := models.RoleMember
			sup := f.admin.ID
			_, err := f.svc.UpdateUser(ctx, f.admin, f.manager.ID, UserPatch{Role: &member, SupervisorID: &sup})
			require.NoError(t, err)

			_, err = f.svc.CreateTask(ctx, stale, NewTask{Title: "t", AssigneeID: f.member.ID})
			assert.True(t, isForbidden(err), "got %v", err)

			tasks, err := f.store.ListTasks(ctx, database.TaskFilter{CreatedBy: f.manager.ID})
			require.NoError(t, err)
			assert.Empty(t, tasks)
		})
	})

	t.Run("deleted manager cannot create", func(t *testing.T) {
		eachBackend(t, func(t *testing.T, f *fixture) {
			ctx := context.Background()
			stale := f.manager
			require.NoError(t, f.svc.DeleteUser(ctx, f.admin, f.manager.ID))

			_, err := f.svc.CreateTask(ctx, stale, NewTask{Title: "t", AssigneeID: f.member.ID})
			assert.True(t, apperr.IsNotFound(err), "got %v", err)

			tasks, err := f.store.ListTasks(ctx, database.TaskFilter{CreatedBy: f.manager.ID})
			require.NoError(t, err)
			assert.Empty(t, tasks)
		})
	})

	t.Run("inflated role cannot edit or delete", func(t *testing.T) {
		eachBackend(t, func(t *testing.T, f *fixture) {
			ctx := context.Background()
			task := f.task(t, f.manager, f.member.ID)
			stale := f.member
			stale.Role = models.RoleAdmin

			title := "renamed"
			_, err := f.svc.UpdateTask(ctx, stale, task.ID, models.TaskPatch{Title: &title})
			assert.True(t, isForbidden(err), "got %v", err)

			err = f.svc.DeleteTask(ctx, stale, task.ID)
			assert.True(t, isForbidden(err), "got %v", err)

			stored, err := f.store.GetTask(ctx, task.ID)
			require.NoError(t, err)
			assert.Equal(t, "write report", stored.Title)
		})
	})

	t.Run("deleted admin cannot delete", func(t *testing.T) {
		eachBackend(t, func(t *testing.T, f *fixture) {
			ctx := context.Background()
			task := f.task(t, f.admin, f.manager.ID)
			stale := f.admin
			stale.ID = "00000000-0000-0000-0000-000000000000"

			err := f.svc.DeleteTask(ctx, stale, task.ID)
			assert.True(t, apperr.IsNotFound(err), "got %v", err)
			_, err = f.store.GetTask(ctx, task.ID)
			assert.NoError(t, err)
		})
	})
}
