package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a duplicate document number or replayed request.
	ErrConflict = errors.New("conflict")
	// ErrValidation indicates malformed or missing request fields.
	ErrValidation = errors.New("validation failed")
)
