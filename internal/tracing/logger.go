package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// Logger decorates base with the correlation fields found in ctx:
// trace_id, span_id, request_id and session_id. Missing fields are omitted.
func Logger(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	if ctx == nil {
		return base
	}

	lc := base.With()
	if id := TraceID(ctx); id != "" {
		lc = lc.Str("trace_id", id)
	}
	if sc := spanContext(ctx); sc.IsValid() {
		lc = lc.Str("span_id", sc.SpanID().String())
	}
	if id := RequestID(ctx); id != "" {
		lc = lc.Str("request_id", id)
	}
	if id := SessionID(ctx); id != "" {
		lc = lc.Str("session_id", id)
	}
	return lc.Logger()
}
