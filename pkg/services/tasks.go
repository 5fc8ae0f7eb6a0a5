package services

import (
	"context"
	"strings"
	"time"

	"taskboard-backend/pkg/apperr"
	"taskboard-backend/pkg/authz"
	"taskboard-backend/pkg/database"
	"taskboard-backend/pkg/models"
)

// NewTask is the input of CreateTask.
type NewTask struct {
	Title       string
	Description string
	AssigneeID  string
	Timeline    *time.Time
}

// resolveAssignee loads the assignee and checks the organization boundary and
// the role pair for assigner handing work to them.
func resolveAssignee(ctx context.Context, db database.Store, assigner models.Actor, assigneeID string) (*models.User, error) {
	assignee, err := db.GetUserByID(ctx, assigneeID)
	if err != nil {
		return nil, err
	}
	if err := authz.AssertInOrg(assigner, "user", assignee.ID, assignee.OrganizationID); err != nil {
		return nil, err
	}
	if err := authz.Require(assigner.Role, authz.ActionAssignTask, assignee.Role); err != nil {
		return nil, err
	}
	return assignee, nil
}

// currentActor re-reads the acting user inside the unit of work so that role
// checks see the stored role rather than the one carried by the token.
func currentActor(ctx context.Context, db database.Store, actor models.Actor) (models.Actor, error) {
	u, err := db.GetUserByID(ctx, actor.ID)
	if err != nil {
		return models.Actor{}, err
	}
	if err := authz.AssertInOrg(actor, "user", u.ID, u.OrganizationID); err != nil {
		return models.Actor{}, err
	}
	return models.ActorOf(u), nil
}

// loadTask fetches a task and checks it belongs to the actor's organization.
func loadTask(ctx context.Context, db database.Store, actor models.Actor, taskID string) (*models.Task, error) {
	task, err := db.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := authz.AssertInOrg(actor, "task", task.ID, task.OrganizationID); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Service) taskView(ctx context.Context, db database.Store, task *models.Task) (*models.TaskView, error) {
	refs, err := populate(ctx, db, task.CreatedBy, task.AssignedTo)
	if err != nil {
		return nil, err
	}
	return &models.TaskView{Task: *task, Creator: refs[task.CreatedBy], Assignee: refs[task.AssignedTo]}, nil
}

func (s *Service) taskViews(ctx context.Context, tasks []models.Task) ([]models.TaskView, error) {
	ids := make([]string, 0, 2*len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.CreatedBy, t.AssignedTo)
	}
	refs, err := populate(ctx, s.db, ids...)
	if err != nil {
		return nil, err
	}
	views := make([]models.TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, models.TaskView{Task: t, Creator: refs[t.CreatedBy], Assignee: refs[t.AssignedTo]})
	}
	return views, nil
}

// CreateTask persists a new task created by the actor for assigneeID.
func (s *Service) CreateTask(ctx context.Context, actor models.Actor, in NewTask) (*models.TaskView, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Validation("title", "title is required")
	}

	var view *models.TaskView
	err := s.db.WithTx(ctx, func(tx database.Store) error {
		creator, err := currentActor(ctx, tx, actor)
		if err != nil {
			return err
		}
		assignee, err := resolveAssignee(ctx, tx, creator, in.AssigneeID)
		if err != nil {
			return err
		}
		task := &models.Task{
			OrganizationID: creator.OrganizationID,
			Title:          title,
			Description:    in.Description,
			Status:         models.StatusNotStarted,
			Timeline:       in.Timeline,
			CreatedBy:      creator.ID,
			AssignedTo:     assignee.ID,
		}
		if err := tx.CreateTask(ctx, task); err != nil {
			return err
		}
		view, err = s.taskView(ctx, tx, task)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("task_id", view.ID).WithField("assigned_to", view.AssignedTo).Info("task created")
	return view, nil
}

// UpdateTask changes the non-status fields of a task. Only the creator or an
// Admin may do so; a new assignee is validated as on creation.
func (s *Service) UpdateTask(ctx context.Context, actor models.Actor, taskID string, patch models.TaskPatch) (*models.TaskView, error) {
	if patch.Empty() {
		return nil, apperr.Validation("", "no fields to update")
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, apperr.Validation("title", "title cannot be empty")
	}

	var view *models.TaskView
	err := s.db.WithTx(ctx, func(tx database.Store) error {
		actor, err := currentActor(ctx, tx, actor)
		if err != nil {
			return err
		}
		task, err := loadTask(ctx, tx, actor, taskID)
		if err != nil {
			return err
		}
		if task.CreatedBy != actor.ID {
			if err := authz.Require(actor.Role, authz.ActionEditAnyTask, models.RoleNone); err != nil {
				return err
			}
		}

		if patch.AssignedTo != nil && *patch.AssignedTo != task.AssignedTo {
			// The role pair is anchored on the creator, which may differ from an editing Admin.
			creator, err := tx.GetUserByID(ctx, task.CreatedBy)
			if err != nil {
				return err
			}
			assignee, err := resolveAssignee(ctx, tx, models.ActorOf(creator), *patch.AssignedTo)
			if err != nil {
				return err
			}
			task.AssignedTo = assignee.ID
		}
		if patch.Title != nil {
			task.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Description != nil {
			task.Description = *patch.Description
		}
		if patch.Timeline != nil {
			task.Timeline = patch.Timeline
		}

		if err := tx.UpdateTask(ctx, task); err != nil {
			return err
		}
		view, err = s.taskView(ctx, tx, task)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// UpdateStatus sets the status of a task. Only the current assignee may call
// it and any status may follow any other.
func (s *Service) UpdateStatus(ctx context.Context, actor models.Actor, taskID string, status models.TaskStatus) (*models.Task, error) {
	if !status.Valid() {
		return nil, apperr.Validation("status", "unknown task status")
	}

	var task *models.Task
	err := s.db.WithTx(ctx, func(tx database.Store) error {
		var err error
		task, err = loadTask(ctx, tx, actor, taskID)
		if err != nil {
			return err
		}
		if task.AssignedTo != actor.ID {
			return apperr.Forbidden("task.update_status", actor.Role, "only the assignee may update the status")
		}
		task.Status = status
		return tx.UpdateTask(ctx, task)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// DeleteTask removes a task and its queries. Only the creator or an Admin may.
func (s *Service) DeleteTask(ctx context.Context, actor models.Actor, taskID string) error {
	return s.db.WithTx(ctx, func(tx database.Store) error {
		actor, err := currentActor(ctx, tx, actor)
		if err != nil {
			return err
		}
		task, err := loadTask(ctx, tx, actor, taskID)
		if err != nil {
			return err
		}
		if task.CreatedBy != actor.ID {
			if err := authz.Require(actor.Role, authz.ActionDeleteAnyTask, models.RoleNone); err != nil {
				return err
			}
		}
		return s.cascadeDeleteTask(ctx, tx, task.ID)
	})
}

// GetTask returns a task to its creator or assignee, or to an Admin of the organization.
func (s *Service) GetTask(ctx context.Context, actor models.Actor, taskID string) (*models.TaskView, error) {
	task, err := loadTask(ctx, s.db, actor, taskID)
	if err != nil {
		return nil, err
	}
	if task.CreatedBy != actor.ID && task.AssignedTo != actor.ID {
		if err := authz.Require(actor.Role, authz.ActionViewOrgTask, models.RoleNone); err != nil {
			return nil, err
		}
	}
	return s.taskView(ctx, s.db, task)
}

// ListManagedTasks lists the tasks the actor created.
func (s *Service) ListManagedTasks(ctx context.Context, actor models.Actor) ([]models.TaskView, error) {
	if err := authz.Require(actor.Role, authz.ActionViewManagedTasks, models.RoleNone); err != nil {
		return nil, err
	}
	tasks, err := s.db.ListTasks(ctx, database.TaskFilter{OrganizationID: actor.OrganizationID, CreatedBy: actor.ID})
	if err != nil {
		return nil, err
	}
	return s.taskViews(ctx, tasks)
}

// ListAssignedTasks lists the tasks assigned to the actor.
func (s *Service) ListAssignedTasks(ctx context.Context, actor models.Actor) ([]models.TaskView, error) {
	tasks, err := s.db.ListTasks(ctx, database.TaskFilter{OrganizationID: actor.OrganizationID, AssignedTo: actor.ID})
	if err != nil {
		return nil, err
	}
	return s.taskViews(ctx, tasks)
}
