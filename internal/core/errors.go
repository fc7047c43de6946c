package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidBackend is returned for an unknown execution selector.
	ErrInvalidBackend = errors.New("invalid backend")
	// ErrInvalidTransport is returned for an unknown process group transport.
	ErrInvalidTransport = errors.New("invalid transport")
	// ErrEmptyInput is returned when a molecule source produced nothing usable.
	ErrEmptyInput = errors.New("no molecules with atoms loaded")
	// ErrGridShape is returned when a buffer does not match the grid dimensions.
	ErrGridShape = errors.New("score grid shape mismatch")
	// ErrPartialGrid is returned when a non-root rank is asked for global results.
	ErrPartialGrid = errors.New("score grid is only held by the root rank")
)

// ErrInvalidArgument indicates invalid input.
type ErrInvalidArgument struct {
	Field   string
	Message string
}

func (e *ErrInvalidArgument) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid argument for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid argument: %s", e.Message)
}

func NewInvalidArgumentError(field, message string) error {
	return &ErrInvalidArgument{Field: field, Message: message}
}

// ErrResourceExhausted indicates a device or allocator limit was hit.
type ErrResourceExhausted struct {
	Resource string
	Cause    error
}

func (e *ErrResourceExhausted) Error() string {
	return fmt.Sprintf("resource exhausted (%s): %v", e.Resource, e.Cause)
}

func (e *ErrResourceExhausted) Unwrap() error { return e.Cause }

func NewResourceExhaustedError(resource string, cause error) error {
	return &ErrResourceExhausted{Resource: resource, Cause: cause}
}

// ErrUnavailable indicates a peer rank could not be reached or has shut down.
type ErrUnavailable struct {
	Operation string
	Cause     error
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("unavailable for %s: %v", e.Operation, e.Cause)
}

func (e *ErrUnavailable) Unwrap() error { return e.Cause }

func NewUnavailableError(operation string, cause error) error {
	return &ErrUnavailable{Operation: operation, Cause: cause}
}
