package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
)

// Problem type URIs, relative to the API root
const (
	TypeValidation        = "/errors/validation"
	TypeNotFound          = "/errors/not-found"
	TypeRateLimit         = "/errors/rate-limit"
	TypeInternal          = "/errors/internal"
	TypeTimeout           = "/errors/timeout"
	TypePayloadTooLarge   = "/errors/payload-too-large"
	TypeMethodNotAllowed  = "/errors/method-not-allowed"
	TypeUnsupportedFormat = "/errors/dataset/unsupported-format"
	TypeUnreadableDataset = "/errors/dataset/unreadable"
	TypeAnalysisNotFound  = "/errors/analysis/not-found"
	TypeViewNotFound      = "/errors/analysis/view-not-found"
	TypeUpstream          = "/errors/upstream"
)

// problemKind is how one class of failure is presented over HTTP
type problemKind struct {
	status int
	uri    string
	title  string
}

var internalKind = problemKind{http.StatusInternalServerError, TypeInternal, "Internal Server Error"}

// appErrorKinds covers the AppError taxonomy; storage and config failures
// fall through to internalKind.
var appErrorKinds = map[ErrorType]problemKind{
	ErrTypeValidation:        {http.StatusBadRequest, TypeValidation, "Validation Failed"},
	ErrTypeNotFound:          {http.StatusNotFound, TypeNotFound, "Resource Not Found"},
	ErrTypeParsing:           {http.StatusUnprocessableEntity, TypeUnreadableDataset, "Unreadable Dataset"},
	ErrTypeUnsupportedFormat: {http.StatusUnsupportedMediaType, TypeUnsupportedFormat, "Unsupported Format"},
	ErrTypeTooLarge:          {http.StatusRequestEntityTooLarge, TypePayloadTooLarge, "Payload Too Large"},
	ErrTypeUpstream:          {http.StatusBadGateway, TypeUpstream, "Upstream Failure"},
}

// apiErrorTypes gives APIError codes their problem type URI. Other client
// error codes use about:blank.
var apiErrorTypes = map[string]string{
	CodeInvalidRequest:   TypeValidation,
	CodeValidationFailed: TypeValidation,
	CodeAnalysisNotFound: TypeAnalysisNotFound,
	CodeViewNotFound:     TypeViewNotFound,
	CodeRateLimited:      TypeRateLimit,
}

const genericDetail = "An unexpected error occurred while processing your request"

// ErrorHandler turns errors into problem responses and logs them. With
// includeStack set, 5xx responses carry the goroutine stack.
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError writes err as a problem document. A nil err writes nothing.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	problem := h.ErrorToProblem(err, r)
	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.LogAttrs(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("type", problem.Type),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	h.write(w, r, problem)
}

// ErrorToProblem builds the problem document for err without writing it
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	var (
		apiErr *APIError
		appErr *AppError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return NewProblemDetails(http.StatusGatewayTimeout, TypeTimeout, "Request Timeout",
			"The request took too long to process and was cancelled", r.URL.Path)
	case errors.As(err, &apiErr):
		return apiErrorToProblem(apiErr, r)
	case errors.As(err, &appErr):
		return appErrorToProblem(appErr, r)
	default:
		return newProblem(internalKind, genericDetail, r)
	}
}

func newProblem(k problemKind, detail string, r *http.Request) *ProblemDetails {
	return NewProblemDetails(k.status, k.uri, k.title, detail, r.URL.Path)
}

func apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	uri, ok := apiErrorTypes[apiErr.ErrorCode]
	switch {
	case ok:
	case apiErr.StatusCode >= http.StatusInternalServerError:
		uri = TypeInternal
	default:
		uri = "about:blank"
	}

	problem := NewProblemDetails(apiErr.StatusCode, uri, http.StatusText(apiErr.StatusCode), apiErr.Message, r.URL.Path).
		WithExtension("error_code", apiErr.ErrorCode)
	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}
	return problem
}

// appErrorToProblem exposes the message of client-side failures and the
// error context. Server-side messages may name paths and are replaced.
func appErrorToProblem(appErr *AppError, r *http.Request) *ProblemDetails {
	kind, ok := appErrorKinds[appErr.Type]
	if !ok {
		kind = internalKind
	}

	detail := appErr.Message
	switch {
	case !ok:
		detail = genericDetail
	case appErr.Type == ErrTypeParsing && appErr.Cause != nil:
		detail = fmt.Sprintf("%s: %v", appErr.Message, appErr.Cause)
	}

	problem := newProblem(kind, detail, r).WithExtension("error_type", string(appErr.Type))
	for k, v := range appErr.Context {
		problem.WithExtension(k, v)
	}
	return problem
}

// write stamps the trace id, adds the stack for 5xx in development and
// sends the document
func (h *ErrorHandler) write(w http.ResponseWriter, r *http.Request, problem *ProblemDetails) {
	problem.WithExtension("trace_id", middleware.GetReqID(r.Context()))
	if h.includeStack && problem.Status >= http.StatusInternalServerError {
		problem.WithExtension("stack", string(debug.Stack()))
	}
	writeProblem(w, problem)
}

// HandlePanic logs a recovered panic and responds with a 500 problem
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	h.logPanic(r, recovered, false)

	problem := newProblem(internalKind, "An unexpected error occurred", r)
	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprint(recovered))
	}
	h.write(w, r, problem)
}

func (h *ErrorHandler) logPanic(r *http.Request, recovered interface{}, responseStarted bool) {
	h.logger.LogAttrs(r.Context(), slog.LevelError, "panic recovered",
		slog.Any("panic", recovered),
		slog.Bool("response_started", responseStarted),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)
}

// NotFound is the router's 404 handler
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, NewProblemDetails(http.StatusNotFound, TypeNotFound, "Not Found",
		"The requested resource was not found", r.URL.Path))
}

// MethodNotAllowed is the router's 405 handler
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, NewProblemDetails(http.StatusMethodNotAllowed, TypeMethodNotAllowed, "Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method), r.URL.Path))
}
