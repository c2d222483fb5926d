package domain

import (
	"errors"
	"fmt"
)

// NotFoundError marks a missing required input table. Surfaced to callers as
// a not-found failure and never retried internally.
type NotFoundError struct {
	Table string
	Err   error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("required table %q not found: %v", e.Table, e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// NewNotFound wraps err as a NotFoundError for the given table.
func NewNotFound(table string, err error) error {
	return &NotFoundError{Table: table, Err: err}
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
