package observability

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/harun/authvault/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AuditEvent is one line of the audit trail. It names what happened to
// which record and never carries a credential.
type AuditEvent struct {
	Action    string // e.g. "session.created", "config.init"
	SessionID string
	Actor     string
	Details   map[string]interface{}
}

// AuditLog writes audit events as JSON lines.
type AuditLog struct {
	mu     sync.Mutex
	logger zerolog.Logger
	closer io.Closer
}

var (
	auditLog    atomic.Pointer[AuditLog]
	stderrAudit = NewAuditLog(os.Stderr)
)

// NewAuditLog returns an audit log writing to w.
func NewAuditLog(w io.Writer) *AuditLog {
	return &AuditLog{logger: zerolog.New(w).With().Timestamp().Logger()}
}

// Audit returns the installed audit log, or a stderr log when none is open.
func Audit() *AuditLog {
	if a := auditLog.Load(); a != nil {
		return a
	}
	return stderrAudit
}

// OpenAuditLog appends subsequent audit events to path, closing any audit
// file opened earlier.
func OpenAuditLog(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}

	a := NewAuditLog(file)
	a.closer = file
	if prev := auditLog.Swap(a); prev != nil {
		_ = prev.close()
	}
	return nil
}

// CloseAuditLog closes the file opened by OpenAuditLog. Later events go to
// stderr.
func CloseAuditLog() error {
	if a := auditLog.Swap(nil); a != nil {
		return a.close()
	}
	return nil
}

// SetAuditLog installs a and returns a func restoring the previous log.
func SetAuditLog(a *AuditLog) (restore func()) {
	prev := auditLog.Swap(a)
	return func() { auditLog.Store(prev) }
}

// Record writes event, tagged with the trace id from ctx. The event is
// also attached to the active span.
func (a *AuditLog) Record(ctx context.Context, event AuditEvent) {
	if ctx == nil {
		ctx = context.Background()
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.AddEvent(event.Action, trace.WithAttributes(
			attribute.String("audit.session_id", event.SessionID),
			attribute.String("audit.actor", event.Actor),
		))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.logger.Log().Str("action", event.Action)
	if event.SessionID != "" {
		entry = entry.Str("session_id", event.SessionID)
	}
	if event.Actor != "" {
		entry = entry.Str("actor", event.Actor)
	}
	if id := tracing.TraceID(ctx); id != "" {
		entry = entry.Str("trace_id", id)
	}
	if len(event.Details) > 0 {
		entry = entry.Interface("details", event.Details)
	}
	entry.Send()
}

func (a *AuditLog) close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}

// AuditSession records a session lifecycle event. details must never
// include the credential.
func AuditSession(ctx context.Context, action, sessionID string, details map[string]interface{}) {
	Audit().Record(ctx, AuditEvent{Action: action, SessionID: sessionID, Details: details})
}

// AuditConfig records a configuration change made by actor.
func AuditConfig(ctx context.Context, action, actor string, details map[string]interface{}) {
	Audit().Record(ctx, AuditEvent{Action: action, Actor: actor, Details: details})
}
