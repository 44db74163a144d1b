package service

import (
	"errors"
	"fmt"
)

// Error kinds reported by the change-request workflow. Callers classify with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("a pending change request already exists")
	ErrNoChanges  = errors.New("no fields differ from the current record")
	ErrStaleState = errors.New("change request was already decided")
	ErrStorage    = errors.New("object storage failure")
	ErrExecutor   = errors.New("applying the approved change failed")
	ErrNotFound   = errors.New("not found")
)

// ValidationError describes one rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Kind names the error kind of err for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrExecutor):
		return "executor"
	case errors.Is(err, ErrStorage):
		return "storage"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNoChanges):
		return "no_changes"
	case errors.Is(err, ErrStaleState):
		return "stale_state"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	}
	return "internal"
}
