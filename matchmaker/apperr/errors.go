// Package apperr holds the error taxonomy shared by the matchmaker packages
// and translated to status codes at the HTTP boundary.
package apperr

import (
	"errors"
	"fmt"
)

// Validation causes.
const (
	CauseRequired      = "required"
	CauseInvalidFormat = "invalid format"
	CauseUnsupported   = "unsupported value"
)

// Base errors. Concrete errors wrap one of these so the boundary can match
// them with errors.Is.
var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrForbidden = errors.New("forbidden")
)

// ValidationError reports malformed or missing caller input.
type ValidationError struct {
	Field string
	Cause string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Cause)
}

// Invalid returns a *ValidationError for field.
func Invalid(field, cause string) error {
	return &ValidationError{Field: field, Cause: cause}
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
