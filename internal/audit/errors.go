package audit

import (
	"errors"
	"fmt"
)

var (
	// ErrImmutableViolation is returned when a write targets coordinates that
	// already hold a record, and by every modify attempt on an existing record.
	ErrImmutableViolation = errors.New("immutable log violation")

	// ErrRecordNotExist is returned by a modify attempt on a missing record.
	ErrRecordNotExist = errors.New("record does not exist")

	// ErrValidation is the parent of every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrTenantIsolation is returned when a stored record belongs to a
	// different tenant than the one that addressed it.
	ErrTenantIsolation = errors.New("tenant isolation violation")
)

// ValidationError reports a rejected input field. It matches ErrValidation
// with errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
