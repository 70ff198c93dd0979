package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies failures of the analysis pipeline. The HTTP layer
// maps each type to a problem document and edactl maps it to an exit code.
type ErrorType string

const (
	ErrTypeParsing           ErrorType = "PARSING"
	ErrTypeValidation        ErrorType = "VALIDATION"
	ErrTypeNotFound          ErrorType = "NOT_FOUND"
	ErrTypeStorage           ErrorType = "STORAGE"
	ErrTypeConfig            ErrorType = "CONFIG"
	ErrTypeUnsupportedFormat ErrorType = "UNSUPPORTED_FORMAT"
	ErrTypeUpstream          ErrorType = "UPSTREAM"
	ErrTypeTooLarge          ErrorType = "TOO_LARGE"
)

// Process exit codes used by edactl
const (
	ExitFailure     = 1
	ExitUsage       = 2
	ExitNotFound    = 3
	ExitBadDataset  = 4
	ExitUnreachable = 5
)

// ExitCode returns the process exit code for err. Errors outside the
// taxonomy exit with ExitFailure.
func ExitCode(err error) int {
	typ, ok := TypeOf(err)
	if !ok {
		return ExitFailure
	}
	switch typ {
	case ErrTypeValidation, ErrTypeConfig, ErrTypeUnsupportedFormat:
		return ExitUsage
	case ErrTypeNotFound:
		return ExitNotFound
	case ErrTypeParsing, ErrTypeTooLarge:
		return ExitBadDataset
	case ErrTypeUpstream:
		return ExitUnreachable
	default:
		return ExitFailure
	}
}

// AppError is a typed failure with an optional cause and key/value context.
// Context entries are safe to show to API clients.
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("[%s] %s", e.Type, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext sets key on the error and returns it for chaining
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = map[string]interface{}{}
	}
	e.Context[key] = value
	return e
}

// NewAppError creates an error of type errType
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{Type: errType, Message: message, Cause: cause}
}

// TypeOf returns the type of the first AppError in err's chain
func TypeOf(err error) (ErrorType, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type, true
	}
	return "", false
}

// IsType reports whether err wraps an AppError of type t
func IsType(err error, t ErrorType) bool {
	got, ok := TypeOf(err)
	return ok && got == t
}

// NewParsingError reports input that could not be decoded into a dataset
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewStorageError reports a failed read or write under the reports dir
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewAppValidationError reports bad arguments to a service call
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewNotFoundError reports a missing resource, named in the message
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, resource+" not found", nil)
}

// NewConfigError reports a setting that prevents an operation
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewUnsupportedFormatError reports an input format no loader reads
func NewUnsupportedFormatError(format string) *AppError {
	return NewAppError(ErrTypeUnsupportedFormat, fmt.Sprintf("unsupported file format %q", format), nil).
		WithContext("format", format)
}

// NewUpstreamError wraps a failure of an external service
func NewUpstreamError(service string, cause error) *AppError {
	return NewAppError(ErrTypeUpstream, service+" request failed", cause).
		WithContext("service", service)
}

// NewTooLargeError reports input over a configured size limit
func NewTooLargeError(limit int64) *AppError {
	return NewAppError(ErrTypeTooLarge, fmt.Sprintf("payload too large: limit is %d bytes", limit), nil).
		WithContext("limit_bytes", limit)
}
