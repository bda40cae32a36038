package domain

import "fmt"

// Error types shared by the store, service and handler layers.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in a backend call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrConflict indicates the operation collides with one already in flight.
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

// ErrLocked indicates the statement is confirmed and can no longer change.
type ErrLocked struct {
	StatementID string
}

func (e *ErrLocked) Error() string {
	return fmt.Sprintf("statement %s is confirmed and locked", e.StatementID)
}

// ErrUnbalanced indicates a confirm was attempted while the projected
// closing balance disagrees with the statement.
type ErrUnbalanced struct {
	StatementID string
	Difference  float64
}

func (e *ErrUnbalanced) Error() string {
	return fmt.Sprintf("statement %s is out of balance by %.2f", e.StatementID, e.Difference)
}

// ErrStaleSelection indicates a fetch finished after the session moved on
// to another statement; its result was discarded.
type ErrStaleSelection struct {
	StatementID string
}

func (e *ErrStaleSelection) Error() string {
	return fmt.Sprintf("selection changed while loading statement %s", e.StatementID)
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
	Err     error
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

func (e *ErrUnauthorized) Unwrap() error { return e.Err }
