package audit

import "fmt"

// StorageError represents a whole-operation failure of a storage backend.
// Per-line parse failures during a scan are not storage errors; they are
// skipped and counted instead.
type StorageError struct {
	Backend   string // backend type ("jsonl", "sqlite", "memory")
	Operation string // operation that failed ("append", "query", "statistics", ...)
	Cause     error  // underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("audit storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}

// RecorderError represents a failure to build or append an audit record.
// Append failures must reach the caller: silently dropping audit records is
// a compliance violation.
type RecorderError struct {
	SessionID string // session the record belongs to
	Cause     error  // underlying error
}

// Error implements the error interface.
func (e *RecorderError) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("audit recorder error [session_id=%s]: %v", e.SessionID, e.Cause)
	}
	return fmt.Sprintf("audit recorder error: %v", e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *RecorderError) Unwrap() error {
	return e.Cause
}

// NewRecorderError creates a new RecorderError.
func NewRecorderError(sessionID string, cause error) *RecorderError {
	return &RecorderError{
		SessionID: sessionID,
		Cause:     cause,
	}
}

// ExportError represents an error during audit export.
type ExportError struct {
	Format      string // export format ("json", "csv")
	RecordCount int    // number of records being exported
	Cause       error  // underlying error
}

// Error implements the error interface.
func (e *ExportError) Error() string {
	return fmt.Sprintf("audit export error [format=%s, record_count=%d]: %v", e.Format, e.RecordCount, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *ExportError) Unwrap() error {
	return e.Cause
}

// NewExportError creates a new ExportError.
func NewExportError(format string, recordCount int, cause error) *ExportError {
	return &ExportError{
		Format:      format,
		RecordCount: recordCount,
		Cause:       cause,
	}
}
