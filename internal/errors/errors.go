package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
)

// Error types for the failure classes a screening run can hit
type ErrorType string

const (
	ErrorTypeInput         ErrorType = "input"
	ErrorTypePartition     ErrorType = "partition"
	ErrorTypeDevice        ErrorType = "device"
	ErrorTypeNetwork       ErrorType = "network"
	ErrorTypeComputation   ErrorType = "computation"
	ErrorTypeConfiguration ErrorType = "configuration"
)

// StructuredError provides rich error context
type StructuredError struct {
	Type      ErrorType
	Operation string
	Message   string
	Cause     error
	Context   map[string]interface{}
	Stack     []uintptr
}

// Error implements the error interface
func (e *StructuredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Type, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Operation, e.Message)
}

// Unwrap returns the underlying cause
func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// New creates a new structured error
func New(errType ErrorType, operation, message string) *StructuredError {
	return &StructuredError{
		Type:      errType,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, operation, message string) *StructuredError {
	if err == nil {
		return nil
	}

	return &StructuredError{
		Type:      errType,
		Operation: operation,
		Message:   message,
		Cause:     err,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
	}
}

// WithContext adds context information to an error
func (e *StructuredError) WithContext(key string, value interface{}) *StructuredError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// TypeOf returns the type of the outermost StructuredError in err's chain.
func TypeOf(err error) (ErrorType, bool) {
	var se *StructuredError
	if stderrors.As(err, &se) {
		return se.Type, true
	}
	return "", false
}

// Fatal reports whether an error of this type must terminate the run.
// Input, partition and device failures are never recovered.
func (t ErrorType) Fatal() bool {
	switch t {
	case ErrorTypeInput, ErrorTypePartition, ErrorTypeDevice:
		return true
	default:
		return false
	}
}

// captureStack captures the current stack trace
func captureStack() []uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:]) // skip Callers, captureStack and the constructor
	return pcs[:n]
}

// NewInputError creates an input error
func NewInputError(operation, message string) *StructuredError {
	return New(ErrorTypeInput, operation, message)
}

// NewPartitionError creates a partition error
func NewPartitionError(operation, message string) *StructuredError {
	return New(ErrorTypePartition, operation, message)
}

// NewDeviceError creates a device error
func NewDeviceError(operation, message string) *StructuredError {
	return New(ErrorTypeDevice, operation, message)
}

// NewNetworkError creates a network error
func NewNetworkError(operation, message string) *StructuredError {
	return New(ErrorTypeNetwork, operation, message)
}

// NewComputationError creates a computation error
func NewComputationError(operation, message string) *StructuredError {
	return New(ErrorTypeComputation, operation, message)
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(operation, message string) *StructuredError {
	return New(ErrorTypeConfiguration, operation, message)
}

// WrapInputError wraps an error as an input error
func WrapInputError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeInput, operation, message)
}

// WrapPartitionError wraps an error as a partition error
func WrapPartitionError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypePartition, operation, message)
}

// WrapDeviceError wraps an error as a device error
func WrapDeviceError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeDevice, operation, message)
}

// WrapNetworkError wraps an error as a network error
func WrapNetworkError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeNetwork, operation, message)
}

// WrapComputationError wraps an error as a computation error
func WrapComputationError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeComputation, operation, message)
}

// WrapConfigurationError wraps an error as a configuration error
func WrapConfigurationError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeConfiguration, operation, message)
}
