package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"github.com/example/captionkit/internal/app"
	"github.com/example/captionkit/internal/editor"
	"github.com/example/captionkit/internal/search"
)

// APIError is the JSON body of every failed request.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(status int, code, message string, cause error) *APIError {
	e := &APIError{Status: status, Code: code, Message: message}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// NewBadRequestError creates a 400 for a malformed request body.
func NewBadRequestError(message string, cause error) *APIError {
	return newError(http.StatusBadRequest, "BAD_REQUEST", message, cause)
}

// NewValidationError creates a 400 for a field that failed validation.
func NewValidationError(message string, cause error) *APIError {
	return newError(http.StatusBadRequest, "VALIDATION_ERROR", message, cause)
}

// NewNotFoundError creates a 404.
func NewNotFoundError(resource, id string) *APIError {
	return newError(http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("%s not found: %s", resource, id), nil)
}

// NewConflictError creates a 409.
func NewConflictError(message string, cause error) *APIError {
	return newError(http.StatusConflict, "CONFLICT", message, cause)
}

// NewUnprocessableError creates a 422 for an edit the editor refused.
func NewUnprocessableError(message string, cause error) *APIError {
	return newError(http.StatusUnprocessableEntity, "REJECTED", message, cause)
}

// NewInternalError creates a 500.
func NewInternalError(message string, cause error) *APIError {
	return newError(http.StatusInternalServerError, "INTERNAL_ERROR", message, cause)
}

// fromError maps domain errors onto API errors.
func fromError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var se *search.Error
	if errors.As(err, &se) {
		msg := search.Message(err)
		switch se.Kind {
		case search.KindValidation:
			return NewValidationError(msg, nil)
		case search.KindAuth:
			return newError(http.StatusUnauthorized, "UPSTREAM_AUTH", msg, se.Err)
		case search.KindRateLimit:
			return newError(http.StatusTooManyRequests, "RATE_LIMITED", msg, se.Err)
		default:
			return newError(http.StatusBadGateway, "UPSTREAM_ERROR", msg, se.Err)
		}
	}
	switch {
	case errors.Is(err, ErrUnknownSession):
		return newError(http.StatusNotFound, "NOT_FOUND", "session not found", err)
	case errors.Is(err, search.ErrEmptyQuery):
		return NewValidationError(search.MsgEmptyQuery, nil)
	case errors.Is(err, search.ErrSuperseded), errors.Is(err, search.ErrClosed):
		return NewConflictError("search was replaced", err)
	case errors.Is(err, app.ErrWrongPage):
		return NewConflictError("not available on the current page", err)
	case errors.Is(err, app.ErrNoResult):
		return newError(http.StatusNotFound, "NOT_FOUND", "search result not found", err)
	case errors.Is(err, editor.ErrUnknownElement):
		return newError(http.StatusNotFound, "NOT_FOUND", "element not found", err)
	case errors.Is(err, editor.ErrBelowMinimum), errors.Is(err, editor.ErrNotSelected),
		errors.Is(err, editor.ErrNotDraggable), errors.Is(err, editor.ErrNotText):
		return NewUnprocessableError("edit rejected", err)
	case errors.Is(err, editor.ErrInvalidColor), errors.Is(err, editor.ErrUnknownKind),
		errors.Is(err, app.ErrEmptyURL), errors.Is(err, app.ErrLocalSource):
		return NewValidationError("invalid value", err)
	}
	return NewInternalError("request failed", err)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := fromError(err)
	entry := logrus.WithFields(logrus.Fields{
		"error":  err,
		"path":   r.URL.Path,
		"status": apiErr.Status,
	})
	if apiErr.Status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	render.Status(r, apiErr.Status)
	render.JSON(w, r, apiErr)
}
