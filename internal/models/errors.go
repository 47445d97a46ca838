package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a record id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the requester does not own the record.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized is returned when no valid session accompanies a request.
	ErrUnauthorized = errors.New("unauthorized")
)

// ValidationError reports a missing or out-of-range field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// CheckOwner returns ErrForbidden unless requester owns the record.
func CheckOwner(ownerID, requesterID string) error {
	if ownerID != requesterID {
		return ErrForbidden
	}
	return nil
}
