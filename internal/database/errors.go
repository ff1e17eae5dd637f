package database

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by ChatRepository implementations. Callers are
// expected to match them with errors.Is; only the API and session layers
// translate them into wire-level responses.
var (
	ErrNotFound         = errors.New("not found")
	ErrNotParticipant   = errors.New("not a room participant")
	ErrPermissionDenied = errors.New("permission denied")
	ErrDuplicate        = errors.New("already exists")
)

// ValidationError reports a rejected write, such as a text message with no
// content or a self-to-self room pair.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

func NewValidationError(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

// IsValidation reports whether err is a ValidationError anywhere in its chain.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
