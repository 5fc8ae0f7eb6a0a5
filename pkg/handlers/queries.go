package handlers

import (
	"net/http"

	chiRoute "github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"taskboard-backend/pkg/services"
	"taskboard-backend/pkg/utils"
)

type QueriesHandler struct {
	svc *services.Service
	log logrus.FieldLogger
}

func NewQueriesHandler(svc *services.Service, log logrus.FieldLogger) *QueriesHandler {
	return &QueriesHandler{svc: svc, log: log}
}

// POST /api/tasks/{taskID}/queries
func (h *QueriesHandler) Raise(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req messageRequest
	if !decode(w, r, &req) {
		return
	}
	query, err := h.svc.RaiseQuery(r.Context(), actor, chiRoute.URLParam(r, "taskID"), req.Message)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.WriteCreatedResponse(w, query)
}

// GET /api/tasks/{taskID}/queries
func (h *QueriesHandler) ListForTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	queries, err := h.svc.ListTaskQueries(r.Context(), actor, chiRoute.URLParam(r, "taskID"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.WriteListResponse(w, queries, len(queries))
}

// POST /api/queries/{queryID}/responses
func (h *QueriesHandler) AddResponse(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req messageRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := h.svc.AddResponse(r.Context(), actor, chiRoute.URLParam(r, "queryID"), req.Message)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.WriteCreatedResponse(w, resp)
}

// GET /api/queries/{queryID}/responses
func (h *QueriesHandler) ListResponses(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	responses, err := h.svc.GetResponses(r.Context(), actor, chiRoute.URLParam(r, "queryID"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.WriteListResponse(w, responses, len(responses))
}

// PATCH /api/queries/{queryID}/responses/{responseID}
func (h *QueriesHandler) EditResponse(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req messageRequest
	if !decode(w, r, &req) {
		return
	}
	query, err := h.svc.EditResponse(r.Context(), actor,
		chiRoute.URLParam(r, "queryID"), chiRoute.URLParam(r, "responseID"), req.Message)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.WriteSuccessResponse(w, query)
}

// DELETE /api/queries/{queryID}/responses/{responseID}
func (h *QueriesHandler) DeleteResponse(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	query, err := h.svc.DeleteResponse(r.Context(), actor,
		chiRoute.URLParam(r, "queryID"), chiRoute.URLParam(r, "responseID"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.WriteSuccessResponse(w, query)
}

// PATCH /api/queries/{queryID}/resolve
func (h *QueriesHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req resolveRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	query, err := h.svc.ResolveQuery(r.Context(), actor, chiRoute.URLParam(r, "queryID"), req.resolvedOrDefault())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.WriteSuccessResponse(w, query)
}

// DELETE /api/queries/{queryID}
func (h *QueriesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteQuery(r.Context(), actor, chiRoute.URLParam(r, "queryID")); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]string{"message": "Query deleted"})
}
