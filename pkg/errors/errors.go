// Package errors provides severity-aware error types for the
// reconciliation engine and its collaborators.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Severity indicates error impact level.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error codes
const (
	// ErrCodeInvalidInput signals a contract violation by a collaborator,
	// e.g. a nil record sequence handed to an engine stage. Fatal.
	ErrCodeInvalidInput = "INVALID_INPUT"
	// ErrCodeMalformedRecord identifies a raw record whose attribute
	// encoding cannot be mapped to the normalized schema.
	ErrCodeMalformedRecord = "MALFORMED_RECORD"
	// ErrCodeStorageFailure wraps warehouse read/write failures.
	ErrCodeStorageFailure = "STORAGE_FAILURE"
	// ErrCodeSourceFailure wraps upstream source read failures.
	ErrCodeSourceFailure = "SOURCE_FAILURE"
)

// ReconError is a structured error with context.
type ReconError struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Severity    Severity `json:"severity"`
	RecordRef   string   `json:"record_ref,omitempty"`
	Recoverable bool     `json:"recoverable"`
}

func (e *ReconError) Error() string {
	if e.RecordRef != "" {
		return fmt.Sprintf("[%s] %s: %s (record: %s)", e.Severity, e.Code, e.Message, e.RecordRef)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Code, e.Message)
}

// NewInvalidInput creates an error for a nil record sequence or other
// caller contract violation in the named stage.
func NewInvalidInput(stage, detail string) *ReconError {
	return &ReconError{
		Code:        ErrCodeInvalidInput,
		Message:     fmt.Sprintf("%s: %s", stage, detail),
		Severity:    SeverityFatal,
		Recoverable: false,
	}
}

// NewMalformedRecord creates an error identifying an unparseable raw record.
func NewMalformedRecord(recordRef, detail string) *ReconError {
	return &ReconError{
		Code:        ErrCodeMalformedRecord,
		Message:     detail,
		Severity:    SeverityWarning,
		RecordRef:   recordRef,
		Recoverable: true,
	}
}

// NewStorageFailure wraps a warehouse error.
func NewStorageFailure(op string, err error) *ReconError {
	return &ReconError{
		Code:        ErrCodeStorageFailure,
		Message:     fmt.Sprintf("%s: %v", op, err),
		Severity:    SeverityError,
		Recoverable: true,
	}
}

// IsCode reports whether err is a ReconError carrying the given code.
func IsCode(err error, code string) bool {
	var re *ReconError
	if stderrors.As(err, &re) {
		return re.Code == code
	}
	return false
}
