package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"taskboard-backend/pkg/apperr"
	"taskboard-backend/pkg/models"
)

// MemoryStore keeps every entity in process memory. It is the default backend
// for development and for tests. A unit of work holds the write lock for its
// whole duration and commits a private copy of the data on success.
type MemoryStore struct {
	mu   sync.RWMutex
	data *memoryData
	inTx bool
}

type memoryData struct {
	orgs    map[string]models.Organization
	users   map[string]models.User
	tasks   map[string]models.Task
	queries map[string]models.Query
}

func newMemoryData() *memoryData {
	return &memoryData{
		orgs:    make(map[string]models.Organization),
		users:   make(map[string]models.User),
		tasks:   make(map[string]models.Task),
		queries: make(map[string]models.Query),
	}
}

func (d *memoryData) clone() *memoryData {
	c := newMemoryData()
	for k, v := range d.orgs {
		c.orgs[k] = copyOrg(v)
	}
	for k, v := range d.users {
		c.users[k] = copyUser(v)
	}
	for k, v := range d.tasks {
		c.tasks[k] = copyTask(v)
	}
	for k, v := range d.queries {
		c.queries[k] = copyQuery(v)
	}
	return c
}

// NewMemoryStore 创建内存数据库实例
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newMemoryData()}
}

func now() time.Time {
	return time.Now().UTC()
}

func newID() string {
	return uuid.New().String()
}

// WithTx runs fn against a private copy of the data and swaps it in on success.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &MemoryStore{data: s.data.clone(), inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = tx.data
	return nil
}

// lock and rlock are no-ops inside a unit of work, whose owner already holds
// the root store's write lock.
func (s *MemoryStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *MemoryStore) rlock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

// ==== organizations ====

func (s *MemoryStore) CreateOrganization(ctx context.Context, org *models.Organization) error {
	defer s.lock()()
	for _, o := range s.data.orgs {
		if o.Name == org.Name {
			return apperr.Conflict("organization", "name", org.Name)
		}
	}
	if org.ID == "" {
		org.ID = newID()
	}
	org.CreatedAt = now()
	org.UpdatedAt = org.CreatedAt
	s.data.orgs[org.ID] = copyOrg(*org)
	return nil
}

func (s *MemoryStore) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	defer s.rlock()()
	o, ok := s.data.orgs[id]
	if !ok {
		return nil, apperr.NotFound("organization", id)
	}
	o = copyOrg(o)
	return &o, nil
}

func (s *MemoryStore) UpdateOrganization(ctx context.Context, org *models.Organization) error {
	defer s.lock()()
	existing, ok := s.data.orgs[org.ID]
	if !ok {
		return apperr.NotFound("organization", org.ID)
	}
	for id, o := range s.data.orgs {
		if id != org.ID && o.Name == org.Name {
			return apperr.Conflict("organization", "name", org.Name)
		}
	}
	org.CreatedAt = existing.CreatedAt
	org.UpdatedAt = now()
	s.data.orgs[org.ID] = copyOrg(*org)
	return nil
}

func (s *MemoryStore) DeleteOrganization(ctx context.Context, id string) error {
	defer s.lock()()
	if _, ok := s.data.orgs[id]; !ok {
		return apperr.NotFound("organization", id)
	}
	delete(s.data.orgs, id)
	return nil
}

// ==== users ====

func (s *MemoryStore) emailTaken(email, exceptID string) bool {
	for id, u := range s.data.users {
		if id != exceptID && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	defer s.lock()()
	if s.emailTaken(user.Email, "") {
		return apperr.Conflict("user", "email", user.Email)
	}
	if user.ID == "" {
		user.ID = newID()
	}
	user.CreatedAt = now()
	user.UpdatedAt = user.CreatedAt
	s.data.users[user.ID] = copyUser(*user)
	return nil
}

func (s *MemoryStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	defer s.rlock()()
	u, ok := s.data.users[id]
	if !ok {
		return nil, apperr.NotFound("user", id)
	}
	u = copyUser(u)
	return &u, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	defer s.rlock()()
	for _, u := range s.data.users {
		if strings.EqualFold(u.Email, email) {
			u = copyUser(u)
			return &u, nil
		}
	}
	return nil, apperr.NotFound("user", email)
}

func (s *MemoryStore) ListUsers(ctx context.Context, filter UserFilter) ([]models.User, error) {
	defer s.rlock()()
	out := []models.User{}
	for _, u := range s.data.users {
		if filter.match(&u) {
			out = append(out, copyUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (s *MemoryStore) UpdateUser(ctx context.Context, user *models.User) error {
	defer s.lock()()
	existing, ok := s.data.users[user.ID]
	if !ok {
		return apperr.NotFound("user", user.ID)
	}
	if s.emailTaken(user.Email, user.ID) {
		return apperr.Conflict("user", "email", user.Email)
	}
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = now()
	s.data.users[user.ID] = copyUser(*user)
	return nil
}

func (s *MemoryStore) DeleteUser(ctx context.Context, id string) error {
	defer s.lock()()
	if _, ok := s.data.users[id]; !ok {
		return apperr.NotFound("user", id)
	}
	delete(s.data.users, id)
	return nil
}

func (s *MemoryStore) DeleteUsers(ctx context.Context, filter UserFilter) (int64, error) {
	if filter.empty() {
		return 0, fmt.Errorf("refusing to delete users with an empty filter")
	}
	defer s.lock()()
	var n int64
	for id, u := range s.data.users {
		if filter.match(&u) {
			delete(s.data.users, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ClearSupervisor(ctx context.Context, supervisorID string) (int64, error) {
	defer s.lock()()
	var n int64
	for id, u := range s.data.users {
		if u.Supervisor() == supervisorID {
			u.SupervisorID = nil
			u.UpdatedAt = now()
			s.data.users[id] = u
			n++
		}
	}
	return n, nil
}

// ==== tasks ====

func (s *MemoryStore) CreateTask(ctx context.Context, task *models.Task) error {
	defer s.lock()()
	if task.ID == "" {
		task.ID = newID()
	}
	task.CreatedAt = now()
	task.UpdatedAt = task.CreatedAt
	s.data.tasks[task.ID] = copyTask(*task)
	return nil
}

func (s *MemoryStore) GetTask(ctx context.Context, id string) (*models.Task, error) {
	defer s.rlock()()
	t, ok := s.data.tasks[id]
	if !ok {
		return nil, apperr.NotFound("task", id)
	}
	t = copyTask(t)
	return &t, nil
}

func (s *MemoryStore) ListTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	defer s.rlock()()
	out := []models.Task{}
	for _, t := range s.data.tasks {
		if filter.match(&t) {
			out = append(out, copyTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (s *MemoryStore) UpdateTask(ctx context.Context, task *models.Task) error {
	defer s.lock()()
	existing, ok := s.data.tasks[task.ID]
	if !ok {
		return apperr.NotFound("task", task.ID)
	}
	task.CreatedAt = existing.CreatedAt
	task.UpdatedAt = now()
	s.data.tasks[task.ID] = copyTask(*task)
	return nil
}

func (s *MemoryStore) DeleteTask(ctx context.Context, id string) error {
	defer s.lock()()
	if _, ok := s.data.tasks[id]; !ok {
		return apperr.NotFound("task", id)
	}
	delete(s.data.tasks, id)
	return nil
}

func (s *MemoryStore) DeleteTasks(ctx context.Context, filter TaskFilter) (int64, error) {
	if filter.empty() {
		return 0, fmt.Errorf("refusing to delete tasks with an empty filter")
	}
	defer s.lock()()
	var n int64
	for id, t := range s.data.tasks {
		if filter.match(&t) {
			delete(s.data.tasks, id)
			n++
		}
	}
	return n, nil
}

// ==== queries ====

func (s *MemoryStore) CreateQuery(ctx context.Context, query *models.Query) error {
	defer s.lock()()
	if query.ID == "" {
		query.ID = newID()
	}
	query.CreatedAt = now()
	query.UpdatedAt = query.CreatedAt
	s.data.queries[query.ID] = copyQuery(*query)
	return nil
}

func (s *MemoryStore) GetQuery(ctx context.Context, id string) (*models.Query, error) {
	defer s.rlock()()
	q, ok := s.data.queries[id]
	if !ok {
		return nil, apperr.NotFound("query", id)
	}
	q = copyQuery(q)
	return &q, nil
}

func (s *MemoryStore) ListQueries(ctx context.Context, filter QueryFilter) ([]models.Query, error) {
	defer s.rlock()()
	out := []models.Query{}
	for _, q := range s.data.queries {
		if filter.match(&q) {
			out = append(out, copyQuery(q))
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (s *MemoryStore) UpdateQuery(ctx context.Context, query *models.Query) error {
	defer s.lock()()
	existing, ok := s.data.queries[query.ID]
	if !ok {
		return apperr.NotFound("query", query.ID)
	}
	query.CreatedAt = existing.CreatedAt
	query.UpdatedAt = now()
	s.data.queries[query.ID] = copyQuery(*query)
	return nil
}

func (s *MemoryStore) DeleteQuery(ctx context.Context, id string) error {
	defer s.lock()()
	if _, ok := s.data.queries[id]; !ok {
		return apperr.NotFound("query", id)
	}
	delete(s.data.queries, id)
	return nil
}

func (s *MemoryStore) DeleteQueries(ctx context.Context, filter QueryFilter) (int64, error) {
	if filter.empty() {
		return 0, fmt.Errorf("refusing to delete queries with an empty filter")
	}
	defer s.lock()()
	var n int64
	for id, q := range s.data.queries {
		if filter.match(&q) {
			delete(s.data.queries, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) HealthCheck(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// ==== copy helpers ====

func less(a, b time.Time, idA, idB string) bool {
	if a.Equal(b) {
		return idA < idB
	}
	return a.Before(b)
}

func copyStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyOrg(o models.Organization) models.Organization {
	o.AdminID = copyStringPtr(o.AdminID)
	return o
}

func copyUser(u models.User) models.User {
	u.SupervisorID = copyStringPtr(u.SupervisorID)
	return u
}

func copyTask(t models.Task) models.Task {
	if t.Timeline != nil {
		tl := *t.Timeline
		t.Timeline = &tl
	}
	return t
}

func copyQuery(q models.Query) models.Query {
	q.VisibleTo = append([]string(nil), q.VisibleTo...)
	q.Responses = append([]models.Response(nil), q.Responses...)
	return q
}
