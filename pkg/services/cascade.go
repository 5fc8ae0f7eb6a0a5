package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"taskboard-backend/pkg/apperr"
	"taskboard-backend/pkg/database"
	"taskboard-backend/pkg/models"
)

// Cascade operation names, as reported in CascadeError and metrics.
const (
	opDeleteOrganization = "delete_organization"
	opDeleteTask         = "delete_task"
	opDeleteUser         = "delete_user"
	opChangeRole         = "change_role"
)

// cascade runs the stages of one consistency operation against a unit of work.
// A failing stage aborts the sequence with a CascadeError naming it.
type cascade struct {
	tx        database.Store
	log       logrus.FieldLogger
	operation string
	entityID  string
}

func (s *Service) newCascade(tx database.Store, operation, entityID string) *cascade {
	return &cascade{
		tx:        tx,
		operation: operation,
		entityID:  entityID,
		log: s.log.WithFields(logrus.Fields{
			"cascade":   operation,
			"entity_id": entityID,
		}),
	}
}

func (c *cascade) stage(name string, fn func() (int64, error)) error {
	n, err := fn()
	recordStage(c.operation, name, err)
	if err != nil {
		c.log.WithError(err).WithField("stage", name).Error("cascade stage failed")
		return apperr.Cascade(c.operation, name, c.entityID, err)
	}
	c.log.WithFields(logrus.Fields{"stage": name, "affected": n}).Info("cascade stage applied")
	return nil
}

// deleteTasks removes every task matching filter together with the queries
// raised on them. Stage names are prefixed so callers can tell them apart.
func (c *cascade) deleteTasks(ctx context.Context, prefix string, filter database.TaskFilter) error {
	var ids []string
	err := c.stage(prefix+"_lookup", func() (int64, error) {
		tasks, err := c.tx.ListTasks(ctx, filter)
		if err != nil {
			return 0, err
		}
		ids = make([]string, 0, len(tasks))
		for _, t := range tasks {
			ids = append(ids, t.ID)
		}
		return int64(len(ids)), nil
	})
	if err != nil || len(ids) == 0 {
		return err
	}
	if err := c.stage(prefix+"_queries", func() (int64, error) {
		return c.tx.DeleteQueries(ctx, database.QueryFilter{TaskIDs: ids})
	}); err != nil {
		return err
	}
	return c.stage(prefix, func() (int64, error) {
		return c.tx.DeleteTasks(ctx, database.TaskFilter{IDs: ids})
	})
}

// detachAndClear is shared by manager deletion and role change: reports lose
// their supervisor and every task the user created or was assigned goes away.
func (c *cascade) detachAndClear(ctx context.Context, user *models.User) error {
	if user.Role == models.RoleManager {
		if err := c.stage("detach_reports", func() (int64, error) {
			return Detach(ctx, c.tx, user.ID)
		}); err != nil {
			return err
		}
	}
	if err := c.deleteTasks(ctx, "created_tasks", database.TaskFilter{CreatedBy: user.ID}); err != nil {
		return err
	}
	return c.deleteTasks(ctx, "assigned_tasks", database.TaskFilter{AssignedTo: user.ID})
}

// cascadeDeleteOrganization removes the organization and everything scoped to it.
func (s *Service) cascadeDeleteOrganization(ctx context.Context, tx database.Store, orgID string) error {
	c := s.newCascade(tx, opDeleteOrganization, orgID)
	scope := database.UserFilter{OrganizationID: orgID}
	if err := c.stage("users", func() (int64, error) { return tx.DeleteUsers(ctx, scope) }); err != nil {
		return err
	}
	if err := c.stage("tasks", func() (int64, error) {
		return tx.DeleteTasks(ctx, database.TaskFilter{OrganizationID: orgID})
	}); err != nil {
		return err
	}
	if err := c.stage("queries", func() (int64, error) {
		return tx.DeleteQueries(ctx, database.QueryFilter{OrganizationID: orgID})
	}); err != nil {
		return err
	}
	return c.stage("organization", func() (int64, error) {
		return 1, tx.DeleteOrganization(ctx, orgID)
	})
}

// cascadeDeleteTask removes a task and its queries.
func (s *Service) cascadeDeleteTask(ctx context.Context, tx database.Store, taskID string) error {
	c := s.newCascade(tx, opDeleteTask, taskID)
	if err := c.stage("queries", func() (int64, error) {
		return tx.DeleteQueries(ctx, database.QueryFilter{TaskIDs: []string{taskID}})
	}); err != nil {
		return err
	}
	return c.stage("task", func() (int64, error) {
		return 1, tx.DeleteTask(ctx, taskID)
	})
}

// cascadeDeleteUser detaches reports of a manager, removes the tasks the user
// created or is assigned, then removes the user.
func (s *Service) cascadeDeleteUser(ctx context.Context, tx database.Store, user *models.User) error {
	c := s.newCascade(tx, opDeleteUser, user.ID)
	if err := c.detachAndClear(ctx, user); err != nil {
		return err
	}
	return c.stage("user", func() (int64, error) {
		return 1, tx.DeleteUser(ctx, user.ID)
	})
}

// cascadeChangeRole applies the same clean-up as deletion before persisting
// the updated record, which carries the new role.
func (s *Service) cascadeChangeRole(ctx context.Context, tx database.Store, previous, updated *models.User) error {
	c := s.newCascade(tx, opChangeRole, previous.ID)
	if err := c.detachAndClear(ctx, previous); err != nil {
		return err
	}
	return c.stage("user", func() (int64, error) {
		return 1, tx.UpdateUser(ctx, updated)
	})
}
