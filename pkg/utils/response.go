package utils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// ErrorCode is the stable machine-readable code of an error response.
type ErrorCode string

const (
	CodeBadRequest        ErrorCode = "BAD_REQUEST"
	CodeValidation        ErrorCode = "VALIDATION"
	CodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	CodeForbidden         ErrorCode = "FORBIDDEN"
	CodeCrossOrg          ErrorCode = "CROSS_ORG"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeMethodNotAllowed  ErrorCode = "METHOD_NOT_ALLOWED"
	CodeConflict          ErrorCode = "CONFLICT"
	CodePayloadTooLarge   ErrorCode = "PAYLOAD_TOO_LARGE"
	CodeUnsupportedMedia  ErrorCode = "UNSUPPORTED_MEDIA_TYPE"
	CodeInvalidSupervisor ErrorCode = "INVALID_SUPERVISOR"
	CodeRateLimited       ErrorCode = "RATE_LIMITED"
	CodeCascadeFailed     ErrorCode = "CASCADE_FAILED"
	CodeInternal          ErrorCode = "INTERNAL"
)

var codeStatus = map[ErrorCode]int{
	CodeBadRequest:        http.StatusBadRequest,
	CodeValidation:        http.StatusBadRequest,
	CodeUnauthorized:      http.StatusUnauthorized,
	CodeForbidden:         http.StatusForbidden,
	CodeCrossOrg:          http.StatusForbidden,
	CodeNotFound:          http.StatusNotFound,
	CodeMethodNotAllowed:  http.StatusMethodNotAllowed,
	CodeConflict:          http.StatusConflict,
	CodePayloadTooLarge:   http.StatusRequestEntityTooLarge,
	CodeUnsupportedMedia:  http.StatusUnsupportedMediaType,
	CodeInvalidSupervisor: http.StatusBadRequest,
	CodeRateLimited:       http.StatusTooManyRequests,
	CodeCascadeFailed:     http.StatusInternalServerError,
	CodeInternal:          http.StatusInternalServerError,
}

// Status is the HTTP status a code is served with. Unknown codes are 500.
func (c ErrorCode) Status() int {
	if s, ok := codeStatus[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// APIResponse 标准API响应结构
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// APIError 错误信息结构
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// Meta carries the item count of list responses.
type Meta struct {
	Total int `json:"total"`
}

func writeEnvelope(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		// 头已写出, 只能退回纯文本
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// WriteSuccessResponse 写入200响应
func WriteSuccessResponse(w http.ResponseWriter, data interface{}) {
	writeEnvelope(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

// WriteCreatedResponse 写入201响应
func WriteCreatedResponse(w http.ResponseWriter, data interface{}) {
	writeEnvelope(w, http.StatusCreated, APIResponse{Success: true, Data: data})
}

// WriteListResponse writes data with its item count in meta.
func WriteListResponse(w http.ResponseWriter, data interface{}, total int) {
	writeEnvelope(w, http.StatusOK, APIResponse{Success: true, Data: data, Meta: &Meta{Total: total}})
}

// WriteError writes the error envelope for code, using the status the code maps to.
func WriteError(w http.ResponseWriter, code ErrorCode, message, details string) {
	writeEnvelope(w, code.Status(), APIResponse{
		Error: &APIError{Code: code, Message: message, Details: details},
	})
}

// ErrTrailingData is returned when a JSON body holds more than one value.
var ErrTrailingData = errors.New("request body must contain a single JSON value")

// ParseJSONBody decodes exactly one JSON value into v, rejecting unknown fields.
func ParseJSONBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return ErrTrailingData
	}
	return nil
}
