package handlers

import (
	"net/http"

	chiRoute "github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"taskboard-backend/pkg/models"
	"taskboard-backend/pkg/services"
	"taskboard-backend/pkg/utils"
)

type TasksHandler struct {
	svc *services.Service
	log logrus.FieldLogger
}

func NewTasksHandler(svc *services.Service, log logrus.FieldLogger) *TasksHandler {
	return &TasksHandler{svc: svc, log: log}
}

// POST /api/tasks
func (h *TasksHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req createTaskRequest
	if !decode(w, r, &req) {
		return
	}
	task, err := h.svc.CreateTask(r.Context(), actor, services.NewTask{
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssignedTo,
		Timeline:    req.Timeline,
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.WriteCreatedResponse(w, task)
}

// GET /api/tasks/managed
func (h *TasksHandler) ListManaged(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	tasks, err := h.svc.ListManagedTasks(r.Context(), actor)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.WriteListResponse(w, tasks, len(tasks))
}

// GET /api/tasks/my
func (h *TasksHandler) ListAssigned(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	tasks, err := h.svc.ListAssignedTasks(r.Context(), actor)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.WriteListResponse(w, tasks, len(tasks))
}

// GET /api/tasks/{taskID}
func (h *TasksHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	task, err := h.svc.GetTask(r.Context(), actor, chiRoute.URLParam(r, "taskID"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.WriteSuccessResponse(w, task)
}

// PUT /api/tasks/{taskID}
func (h *TasksHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req updateTaskRequest
	if !decode(w, r, &req) {
		return
	}
	task, err := h.svc.UpdateTask(r.Context(), actor, chiRoute.URLParam(r, "taskID"), models.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Timeline:    req.Timeline,
		AssignedTo:  req.AssignedTo,
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.WriteSuccessResponse(w, task)
}

// PATCH /api/tasks/{taskID}/status
func (h *TasksHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if !decode(w, r, &req) {
		return
	}
	task, err := h.svc.UpdateStatus(r.Context(), actor, chiRoute.URLParam(r, "taskID"), req.Status)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.WriteSuccessResponse(w, task)
}

// DELETE /api/tasks/{taskID}
func (h *TasksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteTask(r.Context(), actor, chiRoute.URLParam(r, "taskID")); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]string{"message": "Task deleted"})
}
