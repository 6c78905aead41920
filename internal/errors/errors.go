package errors

import (
	"errors"
	"fmt"
)

// RAGError is the structured error type shared by every layer of the
// ingest and query pipeline.
type RAGError struct {
	// Code is the unique error code (e.g. "ERR_402_DIMENSION_MISMATCH").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is derived from the code.
	Category Category

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error, if any.
	Cause error

	// Retryable reports whether the caller may retry the operation.
	Retryable bool
}

// Sentinels for errors.Is. Matching is by code, so any RAGError carrying
// the same code matches its sentinel regardless of message or details.
var (
	ErrValidation        = &RAGError{Code: ErrCodeInvalidInput}
	ErrConfig            = &RAGError{Code: ErrCodeConfigInvalid}
	ErrDimensionMismatch = &RAGError{Code: ErrCodeDimensionMismatch}
	ErrNotFound          = &RAGError{Code: ErrCodeNotFound}
	ErrModelUnavailable  = &RAGError{Code: ErrCodeModelUnavailable}
	ErrEmbeddingFailed   = &RAGError{Code: ErrCodeEmbeddingFailed}
	ErrStorage           = &RAGError{Code: ErrCodeStorageFailed}
)

// Error implements the error interface.
func (e *RAGError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("[%s]", e.Code)
	}
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *RAGError) Unwrap() error {
	return e.Cause
}

// Is matches another RAGError by code.
func (e *RAGError) Is(target error) bool {
	if t, ok := target.(*RAGError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error and returns it.
func (e *RAGError) WithDetail(key, value string) *RAGError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a RAGError with the given code and message.
func New(code string, message string, cause error) *RAGError {
	return &RAGError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a RAGError from an existing error, keeping its message.
func Wrap(code string, err error) *RAGError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Validationf creates a validation error with a formatted message.
func Validationf(format string, args ...any) *RAGError {
	return New(ErrCodeInvalidInput, fmt.Sprintf(format, args...), nil)
}

// DimensionMismatch reports a vector whose length differs from the index dimension.
func DimensionMismatch(want, got int) *RAGError {
	return New(ErrCodeDimensionMismatch,
		fmt.Sprintf("vector dimension mismatch: expected %d, got %d", want, got), nil).
		WithDetail("expected", fmt.Sprint(want)).
		WithDetail("actual", fmt.Sprint(got))
}

// NotFound reports an unknown identifier.
func NotFound(kind, id string) *RAGError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s %q not found", kind, id), nil).WithDetail("id", id)
}

// ModelUnavailable reports an embedding model that is not loaded or reachable.
func ModelUnavailable(model string, cause error) *RAGError {
	return New(ErrCodeModelUnavailable, fmt.Sprintf("embedding model %q unavailable", model), cause).
		WithDetail("model", model)
}

// IsRetryable reports whether err (or anything it wraps) is a retryable RAGError.
func IsRetryable(err error) bool {
	var re *RAGError
	if errors.As(err, &re) {
		return re.Retryable
	}
	return false
}

// GetCode extracts the code of the first RAGError in err's chain.
func GetCode(err error) string {
	var re *RAGError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}
