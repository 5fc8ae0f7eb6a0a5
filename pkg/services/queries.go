package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"taskboard-backend/pkg/apperr"
	"taskboard-backend/pkg/authz"
	"taskboard-backend/pkg/database"
	"taskboard-backend/pkg/models"
)

// visibilityFor computes who may see a query raised by raiser on a task.
// The result is stored with the query and never recomputed.
func visibilityFor(ctx context.Context, db database.Store, raiser *models.User, task *models.Task) ([]string, error) {
	visible := []string{raiser.ID}
	switch raiser.Role {
	case models.RoleMember:
		sup, err := SupervisorOf(ctx, db, raiser)
		if err != nil {
			return nil, err
		}
		if sup != nil {
			visible = append(visible, sup.ID)
		}
	case models.RoleManager:
		reports, err := DirectReports(ctx, db, raiser.ID, task.OrganizationID)
		if err != nil {
			return nil, err
		}
		for _, r := range reports {
			visible = append(visible, r.ID)
		}
	}
	return dedupe(visible), nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// loadQuery fetches a query and checks it belongs to the actor's organization.
func loadQuery(ctx context.Context, db database.Store, actor models.Actor, queryID string) (*models.Query, error) {
	q, err := db.GetQuery(ctx, queryID)
	if err != nil {
		return nil, err
	}
	if err := authz.AssertInOrg(actor, "query", q.ID, q.OrganizationID); err != nil {
		return nil, err
	}
	return q, nil
}

func involvedIn(task *models.Task, userID string) bool {
	return task.CreatedBy == userID || task.AssignedTo == userID
}

// RaiseQuery opens a query on a task. The raiser must be the task's creator or assignee.
func (s *Service) RaiseQuery(ctx context.Context, actor models.Actor, taskID, message string) (*models.Query, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperr.Validation("message", "message is required")
	}

	var query *models.Query
	err := s.db.WithTx(ctx, func(tx database.Store) error {
		task, err := loadTask(ctx, tx, actor, taskID)
		if err != nil {
			return err
		}
		if !involvedIn(task, actor.ID) {
			return apperr.Forbidden("query.raise", actor.Role, "only the task creator or assignee may raise a query")
		}
		raiser, err := tx.GetUserByID(ctx, actor.ID)
		if err != nil {
			return err
		}
		visible, err := visibilityFor(ctx, tx, raiser, task)
		if err != nil {
			return err
		}
		query = &models.Query{
			TaskID:         task.ID,
			OrganizationID: task.OrganizationID,
			RaisedBy:       raiser.ID,
			Message:        message,
			VisibleTo:      visible,
			Responses:      []models.Response{},
		}
		return tx.CreateQuery(ctx, query)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("query_id", query.ID).WithField("visible_to", len(query.VisibleTo)).Info("query raised")
	return query, nil
}

// ListTaskQueries lists the queries of a task for its creator or assignee.
func (s *Service) ListTaskQueries(ctx context.Context, actor models.Actor, taskID string) ([]models.QueryView, error) {
	task, err := loadTask(ctx, s.db, actor, taskID)
	if err != nil {
		return nil, err
	}
	if !involvedIn(task, actor.ID) {
		return nil, apperr.Forbidden("query.list", actor.Role, "not involved in this task")
	}
	queries, err := s.db.ListQueries(ctx, database.QueryFilter{TaskIDs: []string{task.ID}})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(queries))
	for _, q := range queries {
		ids = append(ids, q.RaisedBy)
	}
	refs, err := populate(ctx, s.db, ids...)
	if err != nil {
		return nil, err
	}
	views := make([]models.QueryView, 0, len(queries))
	for _, q := range queries {
		views = append(views, models.QueryView{Query: q, Raiser: refs[q.RaisedBy]})
	}
	return views, nil
}

// AddResponse appends a response. The responder must be in the stored visibility set.
func (s *Service) AddResponse(ctx context.Context, actor models.Actor, queryID, message string) (*models.Response, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperr.Validation("message", "message is required")
	}

	var resp *models.Response
	err := s.db.WithTx(ctx, func(tx database.Store) error {
		q, err := loadQuery(ctx, tx, actor, queryID)
		if err != nil {
			return err
		}
		if !q.CanSee(actor.ID) {
			return apperr.Forbidden("query.respond", actor.Role, "not allowed to respond to this query")
		}
		q.Responses = append(q.Responses, models.Response{
			ID:          uuid.New().String(),
			ResponderID: actor.ID,
			Message:     message,
			CreatedAt:   nowUTC(),
		})
		if err := tx.UpdateQuery(ctx, q); err != nil {
			return err
		}
		r := q.Responses[len(q.Responses)-1]
		resp = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// GetResponses returns the thread of a query to its raiser or anyone it is visible to.
func (s *Service) GetResponses(ctx context.Context, actor models.Actor, queryID string) ([]models.Response, error) {
	q, err := loadQuery(ctx, s.db, actor, queryID)
	if err != nil {
		return nil, err
	}
	if !q.CanSee(actor.ID) && q.RaisedBy != actor.ID {
		return nil, apperr.Forbidden("query.read", actor.Role, "not allowed to view responses for this query")
	}
	return q.Responses, nil
}

// EditResponse changes the message of a response. Only its author may.
func (s *Service) EditResponse(ctx context.Context, actor models.Actor, queryID, responseID, message string) (*models.Query, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperr.Validation("message", "message is required")
	}

	var query *models.Query
	err := s.db.WithTx(ctx, func(tx database.Store) error {
		q, err := loadQuery(ctx, tx, actor, queryID)
		if err != nil {
			return err
		}
		i := q.ResponseIndex(responseID)
		if i < 0 {
			return apperr.NotFound("response", responseID)
		}
		if q.Responses[i].ResponderID != actor.ID {
			return apperr.Forbidden("response.edit", actor.Role, "only the responder may edit a response")
		}
		q.Responses[i].Message = message
		query = q
		return tx.UpdateQuery(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	return query, nil
}

// DeleteResponse removes a response. Its author, an Admin or a Manager may.
func (s *Service) DeleteResponse(ctx context.Context, actor models.Actor, queryID, responseID string) (*models.Query, error) {
	var query *models.Query
	err := s.db.WithTx(ctx, func(tx database.Store) error {
		q, err := loadQuery(ctx, tx, actor, queryID)
		if err != nil {
			return err
		}
		i := q.ResponseIndex(responseID)
		if i < 0 {
			return apperr.NotFound("response", responseID)
		}
		if q.Responses[i].ResponderID != actor.ID {
			if err := authz.Require(actor.Role, authz.ActionModerateQuery, models.RoleNone); err != nil {
				return err
			}
		}
		q.Responses = append(q.Responses[:i], q.Responses[i+1:]...)
		query = q
		return tx.UpdateQuery(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	return query, nil
}

// ResolveQuery sets the resolved flag. Only the raiser may.
func (s *Service) ResolveQuery(ctx context.Context, actor models.Actor, queryID string, resolved bool) (*models.Query, error) {
	var query *models.Query
	err := s.db.WithTx(ctx, func(tx database.Store) error {
		q, err := loadQuery(ctx, tx, actor, queryID)
		if err != nil {
			return err
		}
		if q.RaisedBy != actor.ID {
			return apperr.Forbidden("query.resolve", actor.Role, "only the query raiser can resolve this query")
		}
		q.Resolved = resolved
		query = q
		return tx.UpdateQuery(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	return query, nil
}

// DeleteQuery removes a query. An Admin, a Manager or the raiser may.
func (s *Service) DeleteQuery(ctx context.Context, actor models.Actor, queryID string) error {
	return s.db.WithTx(ctx, func(tx database.Store) error {
		q, err := loadQuery(ctx, tx, actor, queryID)
		if err != nil {
			return err
		}
		if q.RaisedBy != actor.ID {
			if err := authz.Require(actor.Role, authz.ActionModerateQuery, models.RoleNone); err != nil {
				return err
			}
		}
		return tx.DeleteQuery(ctx, q.ID)
	})
}
