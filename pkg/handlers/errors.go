package handlers

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"taskboard-backend/pkg/apperr"
	"taskboard-backend/pkg/middleware"
	"taskboard-backend/pkg/models"
	"taskboard-backend/pkg/utils"
)

// writeServiceError 将核心错误映射为HTTP响应
func writeServiceError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	var (
		cascadeErr    *apperr.CascadeError
		notFound      *apperr.NotFoundError
		crossOrg      *apperr.CrossOrgError
		forbidden     *apperr.ForbiddenError
		conflict      *apperr.ConflictError
		badSupervisor *apperr.InvalidSupervisorError
		validation    *apperr.ValidationError
	)

	// cascade先判断: 它包装的底层错误可能是任意类型
	switch {
	case errors.As(err, &cascadeErr):
		log.WithError(err).WithFields(logrus.Fields{
			"operation": cascadeErr.Operation,
			"stage":     cascadeErr.Stage,
			"entity_id": cascadeErr.EntityID,
		}).Error("cascade failed")
		utils.WriteError(w, utils.CodeCascadeFailed, "Operation could not be completed", "stage: "+cascadeErr.Stage)
	case errors.As(err, &notFound):
		utils.WriteError(w, utils.CodeNotFound, notFound.Error(), "")
	// CrossOrgError also matches ForbiddenError, so it goes first.
	case errors.As(err, &crossOrg):
		utils.WriteError(w, utils.CodeCrossOrg, crossOrg.Error(), "")
	case errors.As(err, &forbidden):
		utils.WriteError(w, utils.CodeForbidden, forbidden.Error(), "")
	case errors.As(err, &conflict):
		utils.WriteError(w, utils.CodeConflict, conflict.Error(), "")
	case errors.As(err, &badSupervisor):
		utils.WriteError(w, utils.CodeInvalidSupervisor, badSupervisor.Error(), "")
	case errors.As(err, &validation):
		utils.WriteError(w, utils.CodeValidation, "Validation failed", validation.Error())
	default:
		log.WithError(err).Error("unhandled service error")
		utils.WriteError(w, utils.CodeInternal, "Internal server error", "")
	}
}

// requireActor 获取当前请求的操作者
func requireActor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, ok := middleware.GetActorFromContext(r.Context())
	if !ok {
		utils.WriteError(w, utils.CodeUnauthorized, "Authentication required", "")
	}
	return actor, ok
}
