package handlers

import (
	"net/http"

	chiRoute "github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"taskboard-backend/pkg/services"
	"taskboard-backend/pkg/utils"
)

type OrgsHandler struct {
	svc *services.Service
	log logrus.FieldLogger
}

func NewOrgsHandler(svc *services.Service, log logrus.FieldLogger) *OrgsHandler {
	return &OrgsHandler{svc: svc, log: log}
}

// POST /api/orgs/register
func (h *OrgsHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	org, err := h.svc.RegisterOrganization(r.Context(), services.Registration{
		OrganizationName: req.OrganizationName,
		AdminName:        req.Name,
		Email:            req.Email,
		Password:         req.Password,
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"organization": org})
}

// DELETE /api/orgs/{orgID}
func (h *OrgsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteOrganization(r.Context(), actor, chiRoute.URLParam(r, "orgID")); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	clearSessionCookie(w, r)
	utils.WriteSuccessResponse(w, map[string]string{"message": "Organization deleted"})
}
