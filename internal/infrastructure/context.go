package infrastructure

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

type contextKey string

// TraceIDContextKey carries the id that correlates log lines, websocket
// events and problem documents of one request or analysis run
const TraceIDContextKey contextKey = "trace_id"

// WithTraceID stores a trace id in ctx
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDContextKey, traceID)
}

// GetTraceID returns the trace id stored by WithTraceID
func GetTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	traceID, _ := ctx.Value(TraceIDContextKey).(string)
	return traceID
}

// NewTraceID returns a random id for work that has no span, such as a
// websocket connection or a CLI run
func NewTraceID() string {
	return uuid.NewString()
}

// EnsureTraceID returns ctx with a trace id. An existing id is kept; an
// active span lends its trace id; otherwise a fresh one is generated.
func EnsureTraceID(ctx context.Context) context.Context {
	if GetTraceID(ctx) != "" {
		return ctx
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return WithTraceID(ctx, sc.TraceID().String())
	}
	return WithTraceID(ctx, NewTraceID())
}
