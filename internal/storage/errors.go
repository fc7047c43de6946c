package storage

import (
	"fmt"
	"time"
)

// ExportError provides context for result export operations.
type ExportError struct {
	Op        string // "create", "write", "close", "open", "stat", "read"
	Path      string
	Cause     error
	Timestamp time.Time
}

func (e *ExportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("export %s failed for %s: %v", e.Op, e.Path, e.Cause)
	}
	return fmt.Sprintf("export %s failed for %s", e.Op, e.Path)
}

func (e *ExportError) Unwrap() error {
	return e.Cause
}

// NewExportError creates an export error with timestamp.
func NewExportError(op, path string, cause error) error {
	return &ExportError{
		Op:        op,
		Path:      path,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}
