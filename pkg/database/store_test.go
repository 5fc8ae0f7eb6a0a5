package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard-backend/pkg/apperr"
	"taskboard-backend/pkg/models"
)

func openSQLite(t *testing.T) *SQLStore {
	t.Helper()
	ctx := context.Background()
	store, err := OpenSQLStore(ctx, DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// eachStore runs the same behavioural checks against every implementation.
func eachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, openSQLite(t)) })
}

func strPtr(s string) *string { return &s }

func seedOrg(t *testing.T, s Store, name string) *models.Organization {
	t.Helper()
	org := &models.Organization{Name: name}
	require.NoError(t, s.CreateOrganization(context.Background(), org))
	return org
}

func seedUser(t *testing.T, s Store, org, email string, role models.Role, supervisor string) *models.User {
	t.Helper()
	u := &models.User{
		Name:           email,
		Email:          email,
		PasswordHash:   "x",
		Role:           role,
		OrganizationID: org,
	}
	if supervisor != "" {
		u.SupervisorID = strPtr(supervisor)
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func seedTask(t *testing.T, s Store, org, creator, assignee string) *models.Task {
	t.Helper()
	task := &models.Task{
		OrganizationID: org,
		Title:          "task",
		Status:         models.StatusNotStarted,
		CreatedBy:      creator,
		AssignedTo:     assignee,
	}
	require.NoError(t, s.CreateTask(context.Background(), task))
	return task
}

func TestStore_OrganizationLifecycle(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		org := seedOrg(t, s, "Acme")
		assert.NotEmpty(t, org.ID)

		err := s.CreateOrganization(ctx, &models.Organization{Name: "Acme"})
		assert.True(t, errors.Is(err, &apperr.ConflictError{}), "duplicate name: %v", err)

		org.AdminID = strPtr("admin-1")
		require.NoError(t, s.UpdateOrganization(ctx, org))

		got, err := s.GetOrganization(ctx, org.ID)
		require.NoError(t, err)
		assert.Equal(t, "Acme", got.Name)
		assert.Equal(t, "admin-1", *got.AdminID)

		require.NoError(t, s.DeleteOrganization(ctx, org.ID))
		_, err = s.GetOrganization(ctx, org.ID)
		assert.True(t, apperr.IsNotFound(err))
		assert.True(t, apperr.IsNotFound(s.DeleteOrganization(ctx, org.ID)))
	})
}

func TestStore_Users(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		org := seedOrg(t, s, "Acme")
		mgr := seedUser(t, s, org.ID, "m@acme.io", models.RoleManager, "")
		a := seedUser(t, s, org.ID, "a@acme.io", models.RoleMember, mgr.ID)
		b := seedUser(t, s, org.ID, "b@acme.io", models.RoleMember, mgr.ID)
		seedUser(t, s, org.ID, "c@acme.io", models.RoleMember, "")

		err := s.CreateUser(ctx, &models.User{Name: "dup", Email: "a@acme.io", PasswordHash: "x", Role: models.RoleMember, OrganizationID: org.ID})
		assert.True(t, errors.Is(err, &apperr.ConflictError{}), "duplicate email: %v", err)

		byEmail, err := s.GetUserByEmail(ctx, "b@acme.io")
		require.NoError(t, err)
		assert.Equal(t, b.ID, byEmail.ID)

		reports, err := s.ListUsers(ctx, UserFilter{SupervisorID: mgr.ID})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{a.ID, b.ID}, ids(reports))

		members, err := s.ListUsers(ctx, UserFilter{OrganizationID: org.ID, Role: models.RoleMember})
		require.NoError(t, err)
		assert.Len(t, members, 3)

		n, err := s.ClearSupervisor(ctx, mgr.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		got, err := s.GetUserByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Nil(t, got.SupervisorID)

		got.Name = "Alice"
		require.NoError(t, s.UpdateUser(ctx, got))
		got, err = s.GetUserByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "Alice", got.Name)

		_, err = s.DeleteUsers(ctx, UserFilter{})
		assert.Error(t, err, "empty filter must be refused")

		n, err = s.DeleteUsers(ctx, UserFilter{OrganizationID: org.ID})
		require.NoError(t, err)
		assert.EqualValues(t, 4, n)
	})
}

func TestStore_TasksAndQueries(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		org := seedOrg(t, s, "Acme")
		t1 := seedTask(t, s, org.ID, "mgr", "m1")
		t2 := seedTask(t, s, org.ID, "mgr", "m2")
		t3 := seedTask(t, s, org.ID, "admin", "mgr")

		deadline := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
		t1.Timeline = &deadline
		t1.Status = models.StatusOngoing
		require.NoError(t, s.UpdateTask(ctx, t1))
		got, err := s.GetTask(ctx, t1.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusOngoing, got.Status)
		require.NotNil(t, got.Timeline)
		assert.True(t, deadline.Equal(*got.Timeline))

		created, err := s.ListTasks(ctx, TaskFilter{CreatedBy: "mgr"})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{t1.ID, t2.ID}, taskIDs(created))

		none, err := s.ListTasks(ctx, TaskFilter{IDs: []string{}})
		require.NoError(t, err)
		assert.Empty(t, none)

		q := &models.Query{
			TaskID:         t1.ID,
			OrganizationID: org.ID,
			RaisedBy:       "m1",
			Message:        "when?",
			VisibleTo:      []string{"m1", "mgr"},
		}
		require.NoError(t, s.CreateQuery(ctx, q))
		seeded := &models.Query{TaskID: t3.ID, OrganizationID: org.ID, RaisedBy: "mgr", Message: "?", VisibleTo: []string{"mgr"}}
		require.NoError(t, s.CreateQuery(ctx, seeded))

		q.Responses = append(q.Responses, models.Response{ID: "r1", ResponderID: "mgr", Message: "friday", CreatedAt: time.Now().UTC()})
		q.Resolved = true
		require.NoError(t, s.UpdateQuery(ctx, q))

		gotQ, err := s.GetQuery(ctx, q.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"m1", "mgr"}, gotQ.VisibleTo)
		require.Len(t, gotQ.Responses, 1)
		assert.Equal(t, "friday", gotQ.Responses[0].Message)
		assert.True(t, gotQ.Resolved)

		n, err := s.DeleteQueries(ctx, QueryFilter{TaskIDs: []string{t1.ID, t2.ID}})
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		n, err = s.DeleteTasks(ctx, TaskFilter{IDs: []string{t1.ID, t2.ID}})
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		left, err := s.ListQueries(ctx, QueryFilter{OrganizationID: org.ID})
		require.NoError(t, err)
		require.Len(t, left, 1)
		assert.Equal(t, seeded.ID, left[0].ID)
		assert.True(t, apperr.IsNotFound(s.DeleteTask(ctx, t1.ID)))
	})
}

func TestStore_WithTxRollsBack(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		org := seedOrg(t, s, "Acme")
		boom := errors.New("boom")

		err := s.WithTx(ctx, func(tx Store) error {
			seedUser(t, tx, org.ID, "a@acme.io", models.RoleMember, "")
			require.NoError(t, tx.DeleteOrganization(ctx, org.ID))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = s.GetOrganization(ctx, org.ID)
		assert.NoError(t, err, "organization delete must be rolled back")
		users, err := s.ListUsers(ctx, UserFilter{OrganizationID: org.ID})
		require.NoError(t, err)
		assert.Empty(t, users, "user insert must be rolled back")
	})
}

func TestStore_WithTxCommitsAndNests(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		org := seedOrg(t, s, "Acme")

		err := s.WithTx(ctx, func(tx Store) error {
			seedUser(t, tx, org.ID, "a@acme.io", models.RoleMember, "")
			return tx.WithTx(ctx, func(inner Store) error {
				seedUser(t, inner, org.ID, "b@acme.io", models.RoleMember, "")
				return nil
			})
		})
		require.NoError(t, err)

		users, err := s.ListUsers(ctx, UserFilter{OrganizationID: org.ID})
		require.NoError(t, err)
		assert.Len(t, users, 2)
	})
}

func TestNewDatabase_SelectsDriver(t *testing.T) {
	ctx := context.Background()

	store, err := NewDatabase(ctx, DatabaseConfig{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	_, err = NewDatabase(ctx, DatabaseConfig{Driver: "postgres"})
	assert.Error(t, err)

	_, err = NewDatabase(ctx, DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func ids(users []models.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out
}

func taskIDs(tasks []models.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}
