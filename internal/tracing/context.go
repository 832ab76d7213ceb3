package tracing

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey int

const (
	traceIDKey ctxKey = iota
	requestIDKey
	sessionIDKey
)

// NewTraceID returns a random id used to correlate log lines of one
// daemon action.
func NewTraceID() string {
	return uuid.NewString()
}

// WithTraceID returns a copy of ctx carrying traceID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// WithRequestID returns a copy of ctx carrying the admin request id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithSessionID returns a copy of ctx carrying the id of the session being
// operated on.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// TraceID returns the trace id carried by ctx. An explicit WithTraceID value
// wins over the active span's trace id.
func TraceID(ctx context.Context) string {
	if id := value(ctx, traceIDKey); id != "" {
		return id
	}
	if sc := spanContext(ctx); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}

func RequestID(ctx context.Context) string { return value(ctx, requestIDKey) }

func SessionID(ctx context.Context) string { return value(ctx, sessionIDKey) }

func value(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(key).(string)
	return s
}
