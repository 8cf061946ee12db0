package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when an operation needs the order in another category of state
	ErrInvalidState = errors.New("invalid state")

	// ErrNotFound is returned when a referenced order, user or project does not exist
	ErrNotFound = errors.New("not found")

	// ErrConcurrencyConflict is returned when another worker claimed the order first
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrForbidden is returned when the actor may not perform the operation
	ErrForbidden = errors.New("forbidden")

	// ErrValidation is returned for malformed input
	ErrValidation = errors.New("validation failed")

	// ErrDuplicate is returned when an order with the same client reference exists
	ErrDuplicate = errors.New("duplicate")
)
