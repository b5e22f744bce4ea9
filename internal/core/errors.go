package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound matches every NotFoundError.
	ErrNotFound = errors.New("not found")
	// ErrValidation matches every ValidationError.
	ErrValidation = errors.New("validation failed")
)

// Entity names used in NotFoundError.
const (
	EntityRow    = "row"
	EntityPeriod = "period"
)

// NotFoundError reports a row or period id that does not exist.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// RowNotFound is shorthand for a missing row.
func RowNotFound(id int64) error {
	return &NotFoundError{Entity: EntityRow, ID: id}
}

// PeriodNotFound is shorthand for a missing period.
func PeriodNotFound(id int64) error {
	return &NotFoundError{Entity: EntityPeriod, ID: id}
}

// ValidationError reports malformed input, detected before any mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
