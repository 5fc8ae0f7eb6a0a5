package handlers

import (
	"net/http"

	chiRoute "github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"taskboard-backend/pkg/services"
	"taskboard-backend/pkg/utils"
)

type UsersHandler struct {
	svc *services.Service
	log logrus.FieldLogger
}

func NewUsersHandler(svc *services.Service, log logrus.FieldLogger) *UsersHandler {
	return &UsersHandler{svc: svc, log: log}
}

func (req updateUserRequest) patch() services.UserPatch {
	return services.UserPatch{
		Name:         req.Name,
		Email:        req.Email,
		Role:         req.Role,
		AvatarURL:    req.AvatarURL,
		SupervisorID: req.SupervisorID,
	}
}

// ==== self-service ====

// GET /api/users/me
func (h *UsersHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	user, err := h.svc.GetProfile(r.Context(), actor)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.WriteSuccessResponse(w, user)
}

// PUT /api/users/me
func (h *UsersHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req updateProfileRequest
	if !decode(w, r, &req) {
		return
	}
	user, err := h.svc.UpdateProfile(r.Context(), actor, req.Name, req.AvatarURL)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.WriteSuccessResponse(w, user)
}

// PUT /api/users/me/password
func (h *UsersHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.ChangePassword(r.Context(), actor, req.OldPassword, req.NewPassword); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]string{"message": "Password updated"})
}

// DELETE /api/users/me
func (h *UsersHandler) DeleteOwnAccount(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteOwnAccount(r.Context(), actor); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	clearSessionCookie(w, r)
	utils.WriteSuccessResponse(w, map[string]string{"message": "Account deleted"})
}

// ==== manager ====

// GET /api/users/members
func (h *UsersHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	members, err := h.svc.ListDirectReports(r.Context(), actor)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.WriteListResponse(w, members, len(members))
}

// POST /api/users/members
func (h *UsersHandler) CreateMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req createMemberRequest
	if !decode(w, r, &req) {
		return
	}
	user, err := h.svc.CreateMember(r.Context(), actor, req.Name, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.WriteCreatedResponse(w, user)
}

// PUT /api/users/members/{userID}
func (h *UsersHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req updateUserRequest
	if !decode(w, r, &req) {
		return
	}
	user, err := h.svc.UpdateMember(r.Context(), actor, chiRoute.URLParam(r, "userID"), req.patch())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.WriteSuccessResponse(w, user)
}

// DELETE /api/users/members/{userID} 仅解除监管关系
func (h *UsersHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := h.svc.RemoveFromSupervision(r.Context(), actor, chiRoute.URLParam(r, "userID")); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]string{"message": "Member removed from supervision"})
}

// ==== admin ====

// GET /api/users/all
func (h *UsersHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	users, err := h.svc.ListOrganizationUsers(r.Context(), actor)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.WriteSuccessResponse(w, users)
}

// POST /api/users
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req createUserRequest
	if !decode(w, r, &req) {
		return
	}
	user, err := h.svc.CreateUser(r.Context(), actor, services.NewUser{
		Name:         req.Name,
		Email:        req.Email,
		Password:     req.Password,
		Role:         req.Role,
		SupervisorID: req.SupervisorID,
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.WriteCreatedResponse(w, user)
}

// PUT /api/users/{userID}
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req updateUserRequest
	if !decode(w, r, &req) {
		return
	}
	user, err := h.svc.UpdateUser(r.Context(), actor, chiRoute.URLParam(r, "userID"), req.patch())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.WriteSuccessResponse(w, user)
}

// DELETE /api/users/{userID}
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteUser(r.Context(), actor, chiRoute.URLParam(r, "userID")); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]string{"message": "User deleted"})
}
