package errors

import (
	"fmt"
	"net/http"
)

// APIError is an error with a fixed HTTP status and a machine-readable
// code. ErrorHandler renders it as a problem with an error_code extension.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// ValidationError names one rejected field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is the details payload of a multi-field rejection
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// New creates an APIError
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates an APIError carrying details
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Error codes shared by handlers and middleware
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeAnalysisNotFound = "ANALYSIS_NOT_FOUND"
	CodeViewNotFound     = "VIEW_NOT_FOUND"
	CodeRateLimited      = "RATE_LIMIT_EXCEEDED"
)

var (
	ErrAnalysisNotFound  = New(http.StatusNotFound, CodeAnalysisNotFound, "Analysis not found")
	ErrRateLimitExceeded = New(http.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded")
)

// InvalidRequestWithError reports a body or multipart stream that could not
// be read
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeInvalidRequest, "Invalid request format", err.Error())
}

// ErrValidation rejects a single field
func ErrValidation(field, message string) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeValidationFailed, "Request validation failed", ValidationError{
		Field:   field,
		Message: message,
	})
}

// NewValidationErrors rejects several fields at once
func NewValidationErrors(errors []ValidationError) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeValidationFailed, "Request validation failed",
		ValidationErrors{Errors: errors})
}

// AnalysisNotFoundError reports a missing analysis; detail says where the
// lookup failed
func AnalysisNotFoundError(detail string) *APIError {
	return NewWithDetails(http.StatusNotFound, CodeAnalysisNotFound, ErrAnalysisNotFound.Message, detail)
}

// ViewNotFoundError reports a view that was not computed for an analysis
func ViewNotFoundError(view string) *APIError {
	return NewWithDetails(http.StatusNotFound, CodeViewNotFound,
		fmt.Sprintf("view %q not available for this analysis", view), view)
}
