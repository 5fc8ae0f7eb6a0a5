package database

import (
	"context"
	"fmt"
	"strings"

	"taskboard-backend/pkg/models"
)

// Store is the persistence collaborator consumed by the services. Every call
// is a potential suspension point; no ordering across callers is implied.
type Store interface {
	// Organizations
	CreateOrganization(ctx context.Context, org *models.Organization) error
	GetOrganization(ctx context.Context, id string) (*models.Organization, error)
	UpdateOrganization(ctx context.Context, org *models.Organization) error
	DeleteOrganization(ctx context.Context, id string) error

	// Users
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id string) error
	DeleteUsers(ctx context.Context, filter UserFilter) (int64, error)
	// ClearSupervisor sets supervisor to none for every user supervised by supervisorID.
	ClearSupervisor(ctx context.Context, supervisorID string) (int64, error)

	// Tasks
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error)
	UpdateTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, id string) error
	DeleteTasks(ctx context.Context, filter TaskFilter) (int64, error)

	// Queries
	CreateQuery(ctx context.Context, query *models.Query) error
	GetQuery(ctx context.Context, id string) (*models.Query, error)
	ListQueries(ctx context.Context, filter QueryFilter) ([]models.Query, error)
	UpdateQuery(ctx context.Context, query *models.Query) error
	DeleteQuery(ctx context.Context, id string) error
	DeleteQueries(ctx context.Context, filter QueryFilter) (int64, error)

	// WithTx runs fn as one unit of work. If fn returns an error nothing it
	// wrote is kept. Calls made on a Store already inside a unit join it.
	WithTx(ctx context.Context, fn func(tx Store) error) error

	// 健康检查
	HealthCheck(ctx context.Context) error

	// 关闭连接
	Close() error
}

// UserFilter selects users by equality on each non-empty field.
type UserFilter struct {
	OrganizationID string
	Role           models.Role
	SupervisorID   string
}

func (f UserFilter) match(u *models.User) bool {
	if f.OrganizationID != "" && u.OrganizationID != f.OrganizationID {
		return false
	}
	if f.Role != models.RoleNone && u.Role != f.Role {
		return false
	}
	if f.SupervisorID != "" && u.Supervisor() != f.SupervisorID {
		return false
	}
	return true
}

func (f UserFilter) empty() bool {
	return f.OrganizationID == "" && f.Role == models.RoleNone && f.SupervisorID == ""
}

// TaskFilter selects tasks by equality on each non-empty field. IDs, when
// non-nil, restricts the match to those ids; an empty non-nil slice matches nothing.
type TaskFilter struct {
	OrganizationID string
	CreatedBy      string
	AssignedTo     string
	IDs            []string
}

func (f TaskFilter) match(t *models.Task) bool {
	if f.OrganizationID != "" && t.OrganizationID != f.OrganizationID {
		return false
	}
	if f.CreatedBy != "" && t.CreatedBy != f.CreatedBy {
		return false
	}
	if f.AssignedTo != "" && t.AssignedTo != f.AssignedTo {
		return false
	}
	if f.IDs != nil && !contains(f.IDs, t.ID) {
		return false
	}
	return true
}

func (f TaskFilter) empty() bool {
	return f.OrganizationID == "" && f.CreatedBy == "" && f.AssignedTo == "" && f.IDs == nil
}

// QueryFilter selects queries by organization and/or owning tasks.
type QueryFilter struct {
	OrganizationID string
	TaskIDs        []string
}

func (f QueryFilter) match(q *models.Query) bool {
	if f.OrganizationID != "" && q.OrganizationID != f.OrganizationID {
		return false
	}
	if f.TaskIDs != nil && !contains(f.TaskIDs, q.TaskID) {
		return false
	}
	return true
}

func (f QueryFilter) empty() bool {
	return f.OrganizationID == "" && f.TaskIDs == nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// Driver names accepted by DatabaseConfig.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver      string
	PostgresDSN string
	SQLitePath  string
	AutoMigrate bool
}

// NewDatabase 根据配置选择数据库实现
func NewDatabase(ctx context.Context, config DatabaseConfig) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(config.Driver))
	if driver == "" {
		switch {
		case config.PostgresDSN != "":
			driver = DriverPostgres
		case config.SQLitePath != "":
			driver = DriverSQLite
		default:
			driver = DriverMemory
		}
	}

	config.Driver = driver

	switch driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverPostgres:
		if config.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres driver selected but POSTGRES_DSN is empty")
		}
		return OpenSQLStore(ctx, DriverPostgres, config.PostgresDSN)
	case DriverSQLite:
		if config.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite driver selected but SQLITE_PATH is empty")
		}
		return OpenSQLStore(ctx, DriverSQLite, config.SQLitePath)
	}
	return nil, fmt.Errorf("unknown database driver %q", config.Driver)
}
