// Package api defines the JSON envelopes returned by every endpoint and the
// single place where errors become HTTP responses.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"synapse-project-api/internal/apperrors"
	"synapse-project-api/internal/logging"
)

const (
	CodeValidationFailed = "ValidationFailed"
	CodeConflict         = "Conflict"
	CodeNotFound         = "NotFound"
	CodeServerError      = "ServerError"
	CodeBadRequest       = "BadRequest"
	CodeUnavailable      = "ServiceUnavailable"

	msgServerError = "An unexpected error occurred."
)

// StatusClientClosedRequest is written when the client went away or the
// request ran out of time before a result existed. Nobody reads the body.
const StatusClientClosedRequest = 499

// Response is the success envelope.
type Response struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Error is the failure envelope.
type Error struct {
	Message   string              `json:"message"`
	Code      string              `json:"code"`
	Status    int                 `json:"status,omitempty"`
	Details   map[string][]string `json:"details,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// Pagination describes one page of a list.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// PaginatedResponse is the data of a paged list.
type PaginatedResponse[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

var now = func() time.Time { return time.Now().UTC() }

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess wraps data in the success envelope.
func WriteSuccess(w http.ResponseWriter, statusCode int, data any, message string) error {
	return WriteJSON(w, statusCode, Response{
		Success:   true,
		Data:      data,
		Message:   message,
		Timestamp: now(),
	})
}

// WriteError writes a failure envelope.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details map[string][]string) error {
	return WriteJSON(w, statusCode, Error{
		Message:   message,
		Code:      code,
		Status:    statusCode,
		Details:   details,
		Timestamp: now(),
	})
}

// WriteAppError maps err onto a status and envelope. A cancelled or expired
// request context aborts quietly with 499 and no body. Anything unclassified
// is logged and answered with a generic 500.
func WriteAppError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		verr   *apperrors.ValidationError
		appErr *apperrors.Error
		field  *apperrors.FieldError
	)
	switch {
	case errors.As(err, &verr):
		_ = WriteError(w, http.StatusBadRequest, CodeValidationFailed, "One or more validation errors occurred.", verr.Details())
	case errors.As(err, &field):
		_ = WriteError(w, http.StatusBadRequest, CodeValidationFailed, "One or more validation errors occurred.",
			map[string][]string{field.Field: {field.Message}})
	case errors.As(err, &appErr) && errors.Is(appErr, apperrors.ErrConflict):
		_ = WriteError(w, http.StatusConflict, orDefault(appErr.Code, CodeConflict), appErr.Message, nil)
	case errors.As(err, &appErr) && errors.Is(appErr, apperrors.ErrNotFound):
		_ = WriteError(w, http.StatusNotFound, orDefault(appErr.Code, CodeNotFound), appErr.Message, nil)
	case errors.Is(err, apperrors.ErrConflict):
		_ = WriteError(w, http.StatusConflict, CodeConflict, "The resource already exists.", nil)
	case errors.Is(err, apperrors.ErrNotFound):
		_ = WriteError(w, http.StatusNotFound, CodeNotFound, "The resource was not found.", nil)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		logger.Debug("Request aborted", zap.Error(err))
		w.WriteHeader(StatusClientClosedRequest)
	default:
		logger.Error("Unhandled request error", zap.String("error", logging.SanitizeError(err)))
		_ = WriteError(w, http.StatusInternalServerError, CodeServerError, msgServerError, nil)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
