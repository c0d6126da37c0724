package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeUnavailable   = "UNAVAILABLE"
	ErrCodeTooLarge      = "TOO_LARGE"
)

// Validation errors
var (
	ErrEmptyQuestion        = NewDomainError(ErrCodeValidation, "question cannot be empty")
	ErrEmptyDocument        = NewDomainError(ErrCodeValidation, "document text cannot be empty")
	ErrInvalidDate          = NewDomainError(ErrCodeValidation, "invalid date")
	ErrInvalidSource        = NewDomainError(ErrCodeValidation, "invalid ledger source")
	ErrMalformedRecord      = NewDomainError(ErrCodeValidation, "ledger record missing date or time")
	ErrEmptyCapture         = NewDomainError(ErrCodeValidation, "capture file is empty")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrBodyTooLarge         = NewDomainError(ErrCodeTooLarge, "request body too large")
)

// Not found errors
var (
	ErrRecordNotFound = NewDomainError(ErrCodeNotFound, "ledger record not found")
)

// Authorization errors
var (
	ErrInvalidAPIToken = NewDomainError(ErrCodeUnauthorized, "invalid api token")
)

// Pipeline errors
var (
	ErrIndexUnavailable     = NewDomainError(ErrCodeUnavailable, "semantic index not configured")
	ErrModelUnavailable     = NewDomainError(ErrCodeUnavailable, "language model not configured")
	ErrExtractionFailed     = NewDomainError(ErrCodeInternalError, "text extraction failed")
	ErrCorpusWriteFailed    = NewDomainError(ErrCodeInternalError, "corpus write failed")
	ErrStorageOperationFail = NewDomainError(ErrCodeInternalError, "storage operation failed")
)
