package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/campusconnect/campus-chat/internal/database"
)

type ApiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func lower(s string) string {
	return strings.ToLower(s)
}

func NewBadRequestError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusBadRequest,
		Message:    lower(http.StatusText(http.StatusBadRequest)),
	}
}

// NewBadRequestReason is for validation failures whose reason is safe to
// show the client.
func NewBadRequestReason(reason string) *ApiError {
	return &ApiError{
		StatusCode: http.StatusBadRequest,
		Message:    reason,
	}
}

func NewNotFoundError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusNotFound,
		Message:    lower(http.StatusText(http.StatusNotFound)),
	}
}

func NewInternalServerError(err error) *ApiError {
	return &ApiError{
		StatusCode: http.StatusInternalServerError,
		Message:    lower(http.StatusText(http.StatusInternalServerError)),
		Err:        err,
	}
}

func NewUnauthorizedError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusUnauthorized,
		Message:    lower(http.StatusText(http.StatusUnauthorized)),
	}
}

// NewConflictError is for writes rejected by a uniqueness constraint.
func NewConflictError(reason string) *ApiError {
	return &ApiError{
		StatusCode: http.StatusConflict,
		Message:    reason,
	}
}

func NewForbiddenError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusForbidden,
		Message:    lower(http.StatusText(http.StatusForbidden)),
	}
}

// apiErrorFor translates repository failures into wire responses. This is
// the only place store-level errors become client-facing.
func apiErrorFor(err error) *ApiError {
	var ve *database.ValidationError
	switch {
	case errors.As(err, &ve):
		return NewBadRequestReason(ve.Reason)
	case errors.Is(err, database.ErrNotFound):
		return NewNotFoundError()
	case errors.Is(err, database.ErrDuplicate):
		return NewConflictError("username or email already in use")
	case errors.Is(err, database.ErrNotParticipant), errors.Is(err, database.ErrPermissionDenied):
		return NewForbiddenError()
	default:
		return NewInternalServerError(err)
	}
}
