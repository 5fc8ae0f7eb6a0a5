package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"taskboard-backend/pkg/models"
	"taskboard-backend/pkg/utils"
)

// Validate 请求体校验器
var Validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// 错误信息里使用json字段名
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("taskstatus", func(fl validator.FieldLevel) bool {
		return models.TaskStatus(fl.Field().String()).Valid()
	}); err != nil {
		panic(err)
	}
	if err := v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		_, err := models.ParseRole(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(err)
	}
	return v
}

// decode parses the JSON body into dto and runs its validation tags. It writes
// the 400 response itself and reports whether the handler may continue.
func decode(w http.ResponseWriter, r *http.Request, dto interface{}) bool {
	if err := utils.ParseJSONBody(r, dto); err != nil {
		writeBodyError(w, err)
		return false
	}
	if msgs, ok := validationMessages(dto); !ok {
		utils.WriteError(w, utils.CodeValidation, "Validation failed", msgs)
		return false
	}
	return true
}

// writeBodyError answers a body that could not be decoded.
func writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		utils.WriteError(w, utils.CodePayloadTooLarge, "Request body too large",
			fmt.Sprintf("limit is %d bytes", tooLarge.Limit))
		return
	}
	utils.WriteError(w, utils.CodeBadRequest, "Invalid request body", err.Error())
}

func validationMessages(dto interface{}) (string, bool) {
	err := Validate.Struct(dto)
	if err == nil {
		return "", true
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error(), false
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	sort.Strings(msgs)
	return strings.Join(msgs, "; "), false
}

type registerRequest struct {
	OrganizationName string `json:"organization_name" validate:"required,min=2,max=100"`
	Name             string `json:"name" validate:"required,min=2,max=100"`
	Email            string `json:"email" validate:"required,email"`
	Password         string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type createUserRequest struct {
	Name         string      `json:"name" validate:"required,min=2,max=100"`
	Email        string      `json:"email" validate:"required,email"`
	Password     string      `json:"password" validate:"required,min=6"`
	Role         models.Role `json:"role" validate:"required,oneof=Manager Member"`
	SupervisorID string      `json:"supervisor_id" validate:"omitempty"`
}

type createMemberRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// updateUserRequest is shared by the admin and manager edit endpoints; the
// service decides which fields each actor may touch.
type updateUserRequest struct {
	Name         *string      `json:"name" validate:"omitempty,min=2,max=100"`
	Email        *string      `json:"email" validate:"omitempty,email"`
	Role         *models.Role `json:"role" validate:"omitempty,role"`
	AvatarURL    *string      `json:"avatar_url" validate:"omitempty,url"`
	SupervisorID *string      `json:"supervisor_id"`
}

type updateProfileRequest struct {
	Name      *string `json:"name" validate:"omitempty,min=2,max=100"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,url"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

type createTaskRequest struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=5000"`
	AssignedTo  string     `json:"assigned_to" validate:"required"`
	Timeline    *time.Time `json:"timeline"`
}

type updateTaskRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	AssignedTo  *string    `json:"assigned_to" validate:"omitempty,min=1"`
	Timeline    *time.Time `json:"timeline"`
}

type updateStatusRequest struct {
	Status models.TaskStatus `json:"status" validate:"required,taskstatus"`
}

type messageRequest struct {
	Message string `json:"message" validate:"required,max=5000"`
}

type resolveRequest struct {
	Resolved *bool `json:"resolved"`
}

// resolvedOrDefault treats an absent flag as "resolve".
func (r resolveRequest) resolvedOrDefault() bool {
	return r.Resolved == nil || *r.Resolved
}

// decodeOptional is decode for endpoints whose body may be empty.
func decodeOptional(w http.ResponseWriter, r *http.Request, dto interface{}) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := utils.ParseJSONBody(r, dto); err != nil {
		writeBodyError(w, err)
		return false
	}
	return true
}
