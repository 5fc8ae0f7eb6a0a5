package database

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"taskboard-backend/pkg/apperr"
	"taskboard-backend/pkg/models"
)

//go:embed schema.sql
var schemaSQL string

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// SQLStore implements Store on top of database/sql. The same queries serve
// PostgreSQL (lib/pq) and SQLite (modernc); placeholders are rebound per driver.
type SQLStore struct {
	db  *sqlx.DB // nil inside a unit of work
	ext sqlx.ExtContext
}

// OpenSQLStore 创建SQL数据库实例
func OpenSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	// Sanitize DSN to avoid stray CR/LF from env values
	dsn = strings.TrimSpace(dsn)
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", driver)
	}

	if driver == DriverSQLite {
		// SQLite serializes writers; one connection keeps in-memory databases shared.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "ping %s", driver)
	}
	return NewSQLStore(db), nil
}

// NewSQLStore wraps an already opened connection pool.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, ext: db}
}

// Migrate applies the embedded schema. Statements are idempotent.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.ext.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "apply schema statement %q", firstLine(stmt))
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func (s *SQLStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if s.db == nil {
		return fn(s)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return wrap(err, "begin transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&SQLStore{ext: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrap(err, "commit transaction")
	}
	return nil
}

func (s *SQLStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ==== helpers ====

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.ext.ExecContext(ctx, s.ext.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap(err, "rows affected")
	}
	return n, nil
}

func (s *SQLStore) get(ctx context.Context, dest any, entity, id, query string, args ...any) error {
	err := sqlx.GetContext(ctx, s.ext, dest, s.ext.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(entity, id)
	}
	if err != nil {
		return errors.Wrapf(err, "get %s", entity)
	}
	return nil
}

func (s *SQLStore) selectRows(ctx context.Context, dest any, query string, args ...any) error {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return wrap(err, "expand query")
	}
	return sqlx.SelectContext(ctx, s.ext, dest, s.ext.Rebind(query), args...)
}

// execIn is exec for statements with slice arguments.
func (s *SQLStore) execIn(ctx context.Context, query string, args ...any) (int64, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return 0, wrap(err, "expand query")
	}
	return s.exec(ctx, query, args...)
}

// wrap annotates a storage error; nil stays nil.
func wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}

func mustAffect(n int64, entity, id string) error {
	if n == 0 {
		return apperr.NotFound(entity, id)
	}
	return nil
}

// isUniqueViolation recognizes unique-constraint failures from both drivers.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) && liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	return false
}

type where struct {
	clauses []string
	args    []any
}

func (w *where) eq(column string, value string) {
	if value == "" {
		return
	}
	w.clauses = append(w.clauses, column+" = ?")
	w.args = append(w.args, value)
}

func (w *where) in(column string, values []string) {
	if values == nil {
		return
	}
	w.clauses = append(w.clauses, column+" IN (?)")
	w.args = append(w.args, values)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// ==== organizations ====

const orgColumns = `id, name, admin_id, created_at, updated_at`

func (s *SQLStore) CreateOrganization(ctx context.Context, org *models.Organization) error {
	if org.ID == "" {
		org.ID = newID()
	}
	org.CreatedAt = now()
	org.UpdatedAt = org.CreatedAt
	_, err := s.exec(ctx, `INSERT INTO organizations (`+orgColumns+`) VALUES (?, ?, ?, ?, ?)`,
		org.ID, org.Name, org.AdminID, org.CreatedAt, org.UpdatedAt)
	if isUniqueViolation(err) {
		return apperr.Conflict("organization", "name", org.Name)
	}
	return wrap(err, "insert organization")
}

func (s *SQLStore) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	var org models.Organization
	if err := s.get(ctx, &org, "organization", id, `SELECT `+orgColumns+` FROM organizations WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &org, nil
}

func (s *SQLStore) UpdateOrganization(ctx context.Context, org *models.Organization) error {
	org.UpdatedAt = now()
	n, err := s.exec(ctx, `UPDATE organizations SET name = ?, admin_id = ?, updated_at = ? WHERE id = ?`,
		org.Name, org.AdminID, org.UpdatedAt, org.ID)
	if isUniqueViolation(err) {
		return apperr.Conflict("organization", "name", org.Name)
	}
	if err != nil {
		return wrap(err, "update organization")
	}
	return mustAffect(n, "organization", org.ID)
}

func (s *SQLStore) DeleteOrganization(ctx context.Context, id string) error {
	n, err := s.exec(ctx, `DELETE FROM organizations WHERE id = ?`, id)
	if err != nil {
		return wrap(err, "delete organization")
	}
	return mustAffect(n, "organization", id)
}

// ==== users ====

const userColumns = `id, name, email, password_hash, role, avatar_url, organization_id, supervisor_id, created_at, updated_at`

func userWhere(f UserFilter) *where {
	w := &where{}
	w.eq("organization_id", f.OrganizationID)
	w.eq("role", string(f.Role))
	w.eq("supervisor_id", f.SupervisorID)
	return w
}

func (s *SQLStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = newID()
	}
	user.CreatedAt = now()
	user.UpdatedAt = user.CreatedAt
	_, err := s.exec(ctx, `INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Name, user.Email, user.PasswordHash, user.Role, user.AvatarURL,
		user.OrganizationID, user.SupervisorID, user.CreatedAt, user.UpdatedAt)
	if isUniqueViolation(err) {
		return apperr.Conflict("user", "email", user.Email)
	}
	return wrap(err, "insert user")
}

func (s *SQLStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.get(ctx, &u, "user", id, `SELECT `+userColumns+` FROM users WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.get(ctx, &u, "user", email, `SELECT `+userColumns+` FROM users WHERE email = ?`, email); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLStore) ListUsers(ctx context.Context, filter UserFilter) ([]models.User, error) {
	w := userWhere(filter)
	users := []models.User{}
	err := s.selectRows(ctx, &users, `SELECT `+userColumns+` FROM users`+w.String()+` ORDER BY created_at, id`, w.args...)
	return users, wrap(err, "list users")
}

func (s *SQLStore) UpdateUser(ctx context.Context, user *models.User) error {
	user.UpdatedAt = now()
	n, err := s.exec(ctx, `UPDATE users SET name = ?, email = ?, password_hash = ?, role = ?, avatar_url = ?,
		organization_id = ?, supervisor_id = ?, updated_at = ? WHERE id = ?`,
		user.Name, user.Email, user.PasswordHash, user.Role, user.AvatarURL,
		user.OrganizationID, user.SupervisorID, user.UpdatedAt, user.ID)
	if isUniqueViolation(err) {
		return apperr.Conflict("user", "email", user.Email)
	}
	if err != nil {
		return wrap(err, "update user")
	}
	return mustAffect(n, "user", user.ID)
}

func (s *SQLStore) DeleteUser(ctx context.Context, id string) error {
	n, err := s.exec(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return wrap(err, "delete user")
	}
	return mustAffect(n, "user", id)
}

func (s *SQLStore) DeleteUsers(ctx context.Context, filter UserFilter) (int64, error) {
	if filter.empty() {
		return 0, fmt.Errorf("refusing to delete users with an empty filter")
	}
	w := userWhere(filter)
	n, err := s.exec(ctx, `DELETE FROM users`+w.String(), w.args...)
	return n, wrap(err, "delete users")
}

func (s *SQLStore) ClearSupervisor(ctx context.Context, supervisorID string) (int64, error) {
	n, err := s.exec(ctx, `UPDATE users SET supervisor_id = NULL, updated_at = ? WHERE supervisor_id = ?`, now(), supervisorID)
	return n, wrap(err, "clear supervisor")
}

// ==== tasks ====

const taskColumns = `id, organization_id, title, description, status, timeline, created_by, assigned_to, created_at, updated_at`

func taskWhere(f TaskFilter) *where {
	w := &where{}
	w.eq("organization_id", f.OrganizationID)
	w.eq("created_by", f.CreatedBy)
	w.eq("assigned_to", f.AssignedTo)
	w.in("id", f.IDs)
	return w
}

func (s *SQLStore) CreateTask(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = newID()
	}
	task.CreatedAt = now()
	task.UpdatedAt = task.CreatedAt
	_, err := s.exec(ctx, `INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.OrganizationID, task.Title, task.Description, task.Status, task.Timeline,
		task.CreatedBy, task.AssignedTo, task.CreatedAt, task.UpdatedAt)
	return wrap(err, "insert task")
}

func (s *SQLStore) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var t models.Task
	if err := s.get(ctx, &t, "task", id, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *SQLStore) ListTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	tasks := []models.Task{}
	if filter.IDs != nil && len(filter.IDs) == 0 {
		return tasks, nil
	}
	w := taskWhere(filter)
	err := s.selectRows(ctx, &tasks, `SELECT `+taskColumns+` FROM tasks`+w.String()+` ORDER BY created_at, id`, w.args...)
	return tasks, wrap(err, "list tasks")
}

func (s *SQLStore) UpdateTask(ctx context.Context, task *models.Task) error {
	task.UpdatedAt = now()
	n, err := s.exec(ctx, `UPDATE tasks SET title = ?, description = ?, status = ?, timeline = ?,
		created_by = ?, assigned_to = ?, updated_at = ? WHERE id = ?`,
		task.Title, task.Description, task.Status, task.Timeline,
		task.CreatedBy, task.AssignedTo, task.UpdatedAt, task.ID)
	if err != nil {
		return wrap(err, "update task")
	}
	return mustAffect(n, "task", task.ID)
}

func (s *SQLStore) DeleteTask(ctx context.Context, id string) error {
	n, err := s.exec(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return wrap(err, "delete task")
	}
	return mustAffect(n, "task", id)
}

func (s *SQLStore) DeleteTasks(ctx context.Context, filter TaskFilter) (int64, error) {
	if filter.empty() {
		return 0, fmt.Errorf("refusing to delete tasks with an empty filter")
	}
	if filter.IDs != nil && len(filter.IDs) == 0 {
		return 0, nil
	}
	w := taskWhere(filter)
	n, err := s.execIn(ctx, `DELETE FROM tasks`+w.String(), w.args...)
	return n, wrap(err, "delete tasks")
}

// ==== queries ====

const queryColumns = `id, task_id, organization_id, raised_by, message, visible_to, responses, resolved, created_at, updated_at`

// queryRow is the stored shape of a query; visibility and responses are JSON documents.
type queryRow struct {
	ID             string    `db:"id"`
	TaskID         string    `db:"task_id"`
	OrganizationID string    `db:"organization_id"`
	RaisedBy       string    `db:"raised_by"`
	Message        string    `db:"message"`
	VisibleTo      string    `db:"visible_to"`
	Responses      string    `db:"responses"`
	Resolved       bool      `db:"resolved"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r queryRow) toModel() (models.Query, error) {
	q := models.Query{
		ID:             r.ID,
		TaskID:         r.TaskID,
		OrganizationID: r.OrganizationID,
		RaisedBy:       r.RaisedBy,
		Message:        r.Message,
		Resolved:       r.Resolved,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(r.VisibleTo), &q.VisibleTo); err != nil {
		return q, errors.Wrapf(err, "decode visible_to of query %s", r.ID)
	}
	if err := json.Unmarshal([]byte(r.Responses), &q.Responses); err != nil {
		return q, errors.Wrapf(err, "decode responses of query %s", r.ID)
	}
	if q.Responses == nil {
		q.Responses = []models.Response{}
	}
	return q, nil
}

func encodeQuery(q *models.Query) (visible, responses string, err error) {
	if q.Responses == nil {
		q.Responses = []models.Response{}
	}
	v, err := json.Marshal(q.VisibleTo)
	if err != nil {
		return "", "", wrap(err, "encode visible_to")
	}
	r, err := json.Marshal(q.Responses)
	if err != nil {
		return "", "", wrap(err, "encode responses")
	}
	return string(v), string(r), nil
}

func queryWhere(f QueryFilter) *where {
	w := &where{}
	w.eq("organization_id", f.OrganizationID)
	w.in("task_id", f.TaskIDs)
	return w
}

func (s *SQLStore) CreateQuery(ctx context.Context, query *models.Query) error {
	if query.ID == "" {
		query.ID = newID()
	}
	query.CreatedAt = now()
	query.UpdatedAt = query.CreatedAt
	visible, responses, err := encodeQuery(query)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, `INSERT INTO queries (`+queryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		query.ID, query.TaskID, query.OrganizationID, query.RaisedBy, query.Message,
		visible, responses, query.Resolved, query.CreatedAt, query.UpdatedAt)
	return wrap(err, "insert query")
}

func (s *SQLStore) GetQuery(ctx context.Context, id string) (*models.Query, error) {
	var row queryRow
	if err := s.get(ctx, &row, "query", id, `SELECT `+queryColumns+` FROM queries WHERE id = ?`, id); err != nil {
		return nil, err
	}
	q, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *SQLStore) ListQueries(ctx context.Context, filter QueryFilter) ([]models.Query, error) {
	out := []models.Query{}
	if filter.TaskIDs != nil && len(filter.TaskIDs) == 0 {
		return out, nil
	}
	w := queryWhere(filter)
	var rows []queryRow
	if err := s.selectRows(ctx, &rows, `SELECT `+queryColumns+` FROM queries`+w.String()+` ORDER BY created_at, id`, w.args...); err != nil {
		return nil, wrap(err, "list queries")
	}
	for _, row := range rows {
		q, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

func (s *SQLStore) UpdateQuery(ctx context.Context, query *models.Query) error {
	visible, responses, err := encodeQuery(query)
	if err != nil {
		return err
	}
	query.UpdatedAt = now()
	n, err := s.exec(ctx, `UPDATE queries SET message = ?, visible_to = ?, responses = ?, resolved = ?, updated_at = ? WHERE id = ?`,
		query.Message, visible, responses, query.Resolved, query.UpdatedAt, query.ID)
	if err != nil {
		return wrap(err, "update query")
	}
	return mustAffect(n, "query", query.ID)
}

func (s *SQLStore) DeleteQuery(ctx context.Context, id string) error {
	n, err := s.exec(ctx, `DELETE FROM queries WHERE id = ?`, id)
	if err != nil {
		return wrap(err, "delete query")
	}
	return mustAffect(n, "query", id)
}

func (s *SQLStore) DeleteQueries(ctx context.Context, filter QueryFilter) (int64, error) {
	if filter.empty() {
		return 0, fmt.Errorf("refusing to delete queries with an empty filter")
	}
	if filter.TaskIDs != nil && len(filter.TaskIDs) == 0 {
		return 0, nil
	}
	w := queryWhere(filter)
	n, err := s.execIn(ctx, `DELETE FROM queries`+w.String(), w.args...)
	return n, wrap(err, "delete queries")
}
