package services

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"taskboard-backend/pkg/apperr"
	"taskboard-backend/pkg/database"
	"taskboard-backend/pkg/models"
	"taskboard-backend/pkg/utils"
)

// fixture is an organization "Acme" with an admin, a manager and one member
// under that manager, plus a second organization "Beta".
type fixture struct {
	svc   *Service
	store database.Store
	logs  *test.Hook

	admin, manager, member models.Actor
	betaAdmin, betaMember  models.Actor
}

func newService(t *testing.T, store database.Store) (*Service, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return New(store, logger, utils.NewBcryptHasher(bcrypt.MinCost), utils.NewJWTService("test-secret", 0)), hook
}

func openSQLite(t *testing.T) database.Store {
	t.Helper()
	ctx := context.Background()
	store, err := database.OpenSQLStore(ctx, database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// eachBackend runs fn against a fresh fixture on every store implementation.
func eachBackend(t *testing.T, fn func(t *testing.T, f *fixture)) {
	t.Run("memory", func(t *testing.T) { fn(t, newFixture(t, database.NewMemoryStore())) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newFixture(t, openSQLite(t))) })
}

func newFixture(t *testing.T, store database.Store) *fixture {
	t.Helper()
	ctx := context.Background()
	svc, hook := newService(t, store)
	f := &fixture{svc: svc, store: store, logs: hook}

	acme, err := svc.RegisterOrganization(ctx, Registration{OrganizationName: "Acme", AdminName: "Ada", Email: "ada@acme.io", Password: "secret1"})
	require.NoError(t, err)
	f.admin = models.Actor{ID: acme.Admin.ID, Role: models.RoleAdmin, OrganizationID: acme.ID}

	m, err := svc.CreateUser(ctx, f.admin, NewUser{Name: "Max", Email: "max@acme.io", Password: "secret1", Role: models.RoleManager})
	require.NoError(t, err)
	f.manager = models.ActorOf(&m.User)

	x, err := svc.CreateMember(ctx, f.manager, "Xia", "xia@acme.io", "secret1")
	require.NoError(t, err)
	f.member = models.ActorOf(&x.User)

	beta, err := svc.RegisterOrganization(ctx, Registration{OrganizationName: "Beta", AdminName: "Bob", Email: "bob@beta.io", Password: "secret1"})
	require.NoError(t, err)
	f.betaAdmin = models.Actor{ID: beta.Admin.ID, Role: models.RoleAdmin, OrganizationID: beta.ID}
	y, err := svc.CreateUser(ctx, f.betaAdmin, NewUser{Name: "Yan", Email: "yan@beta.io", Password: "secret1", Role: models.RoleMember})
	require.NoError(t, err)
	f.betaMember = models.ActorOf(&y.User)
	return f
}

func (f *fixture) task(t *testing.T, creator models.Actor, assignee string) *models.TaskView {
	t.Helper()
	task, err := f.svc.CreateTask(context.Background(), creator, NewTask{Title: "write report", AssigneeID: assignee})
	require.NoError(t, err)
	return task
}

func (f *fixture) user(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := f.store.GetUserByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func isForbidden(err error) bool {
	return errors.Is(err, &apperr.ForbiddenError{})
}

func TestRegisterOrganization(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()

		org, err := f.store.GetOrganization(ctx, f.admin.OrganizationID)
		require.NoError(t, err)
		require.NotNil(t, org.AdminID)
		assert.Equal(t, f.admin.ID, *org.AdminID)

		_, err = f.svc.RegisterOrganization(ctx, Registration{OrganizationName: "Acme", AdminName: "Eve", Email: "eve@acme.io", Password: "secret1"})
		assert.True(t, errors.Is(err, &apperr.ConflictError{}), "duplicate org name: %v", err)

		_, err = f.svc.RegisterOrganization(ctx, Registration{OrganizationName: "Gamma", AdminName: "Eve", Email: "ADA@acme.io", Password: "secret1"})
		assert.True(t, errors.Is(err, &apperr.ConflictError{}), "duplicate email: %v", err)

		_, err = f.store.GetUserByEmail(ctx, "eve@acme.io")
		assert.True(t, apperr.IsNotFound(err))
		admins, err := f.store.ListUsers(ctx, database.UserFilter{Role: models.RoleAdmin})
		require.NoError(t, err)
		assert.Len(t, admins, 2, "failed registration must not leave an admin behind")
	})
}

func TestLogin(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()

		session, err := f.svc.Login(ctx, " Max@Acme.io ", "secret1")
		require.NoError(t, err)
		assert.NotEmpty(t, session.Token)
		assert.Equal(t, f.manager.ID, session.User.ID)

		claims, err := utils.NewJWTService("test-secret", 0).ValidateToken(session.Token)
		require.NoError(t, err)
		assert.Equal(t, f.manager, claims.Actor())

		_, err = f.svc.Login(ctx, "max@acme.io", "wrong-password")
		assert.True(t, isForbidden(err))

		_, err = f.svc.Login(ctx, "nobody@acme.io", "secret1")
		assert.True(t, apperr.IsNotFound(err))
	})
}
