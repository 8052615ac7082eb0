package errors

import (
	stderrors "errors"
	"fmt"
)

// CaseSearchError is the structured error type for casesearch.
// It provides rich context for error handling, logging, and user presentation.
type CaseSearchError struct {
	// Code is the unique error code (e.g., "ERR_601_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Indexing, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *CaseSearchError) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *CaseSearchError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with CaseSearchError.
func (e *CaseSearchError) Is(target error) bool {
	if t, ok := target.(*CaseSearchError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *CaseSearchError) WithDetail(key, value string) *CaseSearchError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *CaseSearchError) WithSuggestion(suggestion string) *CaseSearchError {
	e.Suggestion = suggestion
	return e
}

// Sentinels for errors.Is comparisons. Matching is by code only.
var (
	ErrNotFound            = &CaseSearchError{Code: ErrCodeNotFound}
	ErrSourceUnavailable   = &CaseSearchError{Code: ErrCodeSourceUnavailable}
	ErrIndexUnavailable    = &CaseSearchError{Code: ErrCodeIndexUnavailable}
	ErrInvalidParameters   = &CaseSearchError{Code: ErrCodeInvalidParameters}
	ErrAuthorizationFailed = &CaseSearchError{Code: ErrCodeAuthorizationFailed}
	ErrReindexInProgress   = &CaseSearchError{Code: ErrCodeReindexInProgress}
)

// New creates a new CaseSearchError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *CaseSearchError {
	return &CaseSearchError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a CaseSearchError from an existing error.
// The error's message becomes the CaseSearchError message.
func Wrap(code string, err error) *CaseSearchError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *CaseSearchError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// NotFound reports that a source entity does not exist in its registry.
func NotFound(kind, id string) *CaseSearchError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s %s not found", kind, id), nil).
		WithDetail("kind", kind).
		WithDetail("id", id)
}

// SourceUnavailable reports a transient registry failure.
func SourceUnavailable(message string, cause error) *CaseSearchError {
	return New(ErrCodeSourceUnavailable, message, cause).
		WithSuggestion("Check that the registry is reachable; pending marks are kept for the next drain")
}

// IndexUnavailable reports that the index engine could not serve a request.
func IndexUnavailable(message string, cause error) *CaseSearchError {
	return New(ErrCodeIndexUnavailable, message, cause).
		WithSuggestion("Check the index path and permissions, then retry")
}

// InvalidParameters creates a validation error for rejected caller input.
func InvalidParameters(message string) *CaseSearchError {
	return New(ErrCodeInvalidParameters, message, nil)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *CaseSearchError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the chain contains a CaseSearchError with Retryable set.
func IsRetryable(err error) bool {
	var ce *CaseSearchError
	if stderrors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	var ce *CaseSearchError
	if stderrors.As(err, &ce) {
		return ce.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from the first CaseSearchError in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var ce *CaseSearchError
	if stderrors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsCode reports whether any CaseSearchError in the chain carries code.
func IsCode(err error, code string) bool {
	return stderrors.Is(err, &CaseSearchError{Code: code})
}

// GetCategory extracts the category from a CaseSearchError.
// Returns empty string if not a CaseSearchError.
func GetCategory(err error) Category {
	var ce *CaseSearchError
	if stderrors.As(err, &ce) {
		return ce.Category
	}
	return ""
}
