package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/harun/authvault/internal/filelock"
	"github.com/harun/authvault/internal/observability"
	"github.com/harun/authvault/internal/tracing"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CollisionPolicy decides what Create does when a record already exists
// under the requested id.
type CollisionPolicy string

const (
	// CollisionOverwrite replaces the existing record (re-login semantics).
	CollisionOverwrite CollisionPolicy = "overwrite"
	// CollisionReject fails Create with ErrSessionExists.
	CollisionReject CollisionPolicy = "reject"
)

// ParseCollisionPolicy parses a policy name. The empty string selects
// CollisionOverwrite.
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch CollisionPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", CollisionOverwrite:
		return CollisionOverwrite, nil
	case CollisionReject:
		return CollisionReject, nil
	default:
		return "", fmt.Errorf("unknown collision policy %q (want overwrite or reject)", s)
	}
}

// TouchErrorFunc receives failures of the best-effort last-access update.
// It is a diagnostic channel only; Load never returns these errors.
type TouchErrorFunc func(id string, err error)

// Options configures a Store. The zero value is usable.
type Options struct {
	// Skew is subtracted from ExpiresAt before comparing with now.
	// Zero selects DefaultSkew.
	Skew      time.Duration
	Collision CollisionPolicy
	// Now overrides the clock, mainly for tests.
	Now          func() time.Time
	OnTouchError TouchErrorFunc
}

// Store is a directory of session records shared by every process that
// opens the same directory. A Store holds no mutable state of its own and is
// safe for concurrent use.
type Store struct {
	dir          string
	skew         time.Duration
	collision    CollisionPolicy
	now          func() time.Time
	onTouchError TouchErrorFunc
}

// NewStore opens the session directory, creating it if needed. An empty dir
// selects $HOME/.authvault/sessions.
func NewStore(dir string, opts Options) (*Store, error) {
	observability.EnsureRegistered()

	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, ".authvault", "sessions")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	collision, err := ParseCollisionPolicy(string(opts.Collision))
	if err != nil {
		return nil, err
	}

	s := &Store{
		dir:          dir,
		skew:         opts.Skew,
		collision:    collision,
		now:          opts.Now,
		onTouchError: opts.OnTouchError,
	}
	if s.skew == 0 {
		s.skew = DefaultSkew
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.onTouchError == nil {
		s.onTouchError = logTouchError
	}

	log.Info().Str("dir", dir).Dur("skew", s.skew).Str("collision", string(collision)).Msg("Session store initialized")
	s.refreshActiveGauge()

	return s, nil
}

// Dir returns the directory holding the records.
func (s *Store) Dir() string {
	return s.dir
}

// Skew returns the expiry grace window in effect.
func (s *Store) Skew() time.Duration {
	return s.skew
}

// Now returns the store clock's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

func logTouchError(id string, err error) {
	observability.RecordTouchFailure()
	log.Warn().Str("session_id", id).Err(err).Msg("Failed to update session last access time")
}

func (s *Store) recordPath(id string) string {
	return filepath.Join(s.dir, id+recordExt)
}

// operation carries the span, logger and timing of one store call.
type operation struct {
	name   string
	span   trace.Span
	logger zerolog.Logger
	start  time.Time
}

func (s *Store) begin(ctx context.Context, name, id string) (context.Context, *operation) {
	if ctx == nil {
		ctx = context.Background()
	}
	if id != "" {
		ctx = tracing.WithSessionID(ctx, id)
	}
	ctx, span := tracing.StartSpan(ctx, "session."+name, attribute.String("session_id", id))
	return ctx, &operation{
		name:   name,
		span:   span,
		logger: tracing.Logger(ctx, log.Logger),
		start:  time.Now(),
	}
}

func (op *operation) end(status string, err error) {
	op.span.SetAttributes(attribute.String("status", status))
	tracing.Finish(op.span, err)
	observability.RecordSessionOperation(op.name, status, time.Since(op.start))
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidIdentifier):
		return "invalid"
	case errors.Is(err, ErrSessionExists):
		return "exists"
	default:
		return "error"
	}
}

// Create persists a new session and returns its id. An empty id generates a
// fresh UUID; otherwise id is validated before any filesystem access.
func (s *Store) Create(ctx context.Context, fields Fields, id string) (_ string, err error) {
	ctx, op := s.begin(ctx, "create", id)
	defer func() { op.end(statusOf(err), err) }()

	if id == "" {
		id = NewID()
		op.span.SetAttributes(attribute.String("session_id", id))
		op.logger = op.logger.With().Str("session_id", id).Logger()
		op.logger.Debug().Msg("Generated session id")
	} else {
		if err := ValidateID(id); err != nil {
			return "", err
		}
		op.logger.Debug().Msg("Using caller-supplied session id")
	}

	claims, err := normalizeClaims(fields.Claims)
	if err != nil {
		return "", ioErr("encode", id, err)
	}

	now := truncate(s.now())
	sess := &Session{
		ID:              id,
		Credential:      fields.Credential,
		UpstreamBaseURL: fields.UpstreamBaseURL,
		TenantID:        fields.TenantID,
		SubjectID:       fields.SubjectID,
		RoleID:          fields.RoleID,
		ExpiresAt:       truncate(fields.ExpiresAt),
		CreatedAt:       now,
		LastAccessedAt:  now,
		Claims:          claims,
	}

	data, err := encodeRecord(sess)
	if err != nil {
		return "", ioErr("encode", id, err)
	}

	overwritten, err := s.writeRecord(id, data)
	if err != nil {
		return "", err
	}
	if overwritten {
		op.logger.Warn().Msg("Session already existed, overwritten")
	}

	s.refreshActiveGauge()
	observability.AuditSession(ctx, "session.created", id, map[string]interface{}{
		"tenant_id":   sess.TenantID,
		"subject_id":  sess.SubjectID,
		"overwritten": overwritten,
	})
	op.logger.Info().
		Str("tenant_id", sess.TenantID).
		Str("subject_id", sess.SubjectID).
		Str("role_id", sess.RoleID).
		Msg("Session created")

	return id, nil
}

// writeRecord writes data as the full content of the record while holding
// its lock. It reports whether a non-empty record was replaced.
func (s *Store) writeRecord(id string, data []byte) (bool, error) {
	flags := os.O_CREATE | os.O_RDWR
	if s.collision == CollisionReject {
		flags |= os.O_EXCL
	}

	f, err := filelock.OpenLocked(s.recordPath(id), flags, 0600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, fmt.Errorf("%w: %s", ErrSessionExists, id)
		}
		return false, ioErr("open", id, err)
	}
	defer filelock.Release(f)

	info, err := f.Stat()
	if err != nil {
		return false, ioErr("write", id, err)
	}
	overwritten := info.Size() > 0

	if err := rewrite(f, data); err != nil {
		return false, ioErr("write", id, err)
	}
	return overwritten, nil
}

func rewrite(f *os.File, data []byte) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.WriteAt(data, 0); err != nil {
		return err
	}
	return f.Sync()
}

// decodeLocked reads and decodes the record held open in f. A still empty
// record yields (nil, nil).
func decodeLocked(id string, f *os.File) (*Session, error) {
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, ioErr("read", id, err)
	}

	// The creator opened the file but has not written it yet.
	if len(data) == 0 {
		return nil, nil
	}

	sess, err := decodeRecord(data)
	if err != nil {
		return nil, ioErr("decode", id, err)
	}
	if sess.ID != id {
		return nil, ioErr("decode", id, fmt.Errorf("record holds session id %q", sess.ID))
	}
	return sess, nil
}

// readRecord reads and decodes a record under its lock. A missing or still
// empty record yields (nil, nil).
func (s *Store) readRecord(id string) (*Session, error) {
	f, err := filelock.OpenLocked(s.recordPath(id), os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, ioErr("open", id, err)
	}
	defer filelock.Release(f)

	return decodeLocked(id, f)
}

// removeRecord deletes a record while holding its lock. With a nil match
// the record is removed unconditionally. Otherwise the record is re-read
// under the lock and removed only if match still holds; when it no longer
// does, the current session is returned and nothing is removed. Empty and
// unreadable records are never removed through match.
func (s *Store) removeRecord(id string, match func(*Session) bool) (bool, *Session, error) {
	path := s.recordPath(id)

	f, err := filelock.OpenLocked(path, os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil, nil
		}
		return false, nil, ioErr("open", id, err)
	}
	defer filelock.Release(f)

	if match != nil {
		sess, err := decodeLocked(id, f)
		if err != nil {
			return false, nil, err
		}
		if sess == nil {
			return false, nil, nil
		}
		if !match(sess) {
			return false, sess, nil
		}
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil, nil
		}
		return false, nil, ioErr("remove", id, err)
	}
	return true, nil, nil
}

func (s *Store) expired(sess *Session) bool {
	return IsExpired(s.now(), sess.ExpiresAt, s.skew)
}

// Load returns the session stored under id, or (nil, nil) when there is no
// such session or it has expired. Expired records are deleted. On success the
// record's last access time is bumped on a best-effort basis.
func (s *Store) Load(ctx context.Context, id string) (_ *Session, err error) {
	ctx, op := s.begin(ctx, "load", id)
	status := "success"
	defer func() {
		if err != nil {
			status = statusOf(err)
		}
		op.end(status, err)
	}()

	if err := ValidateID(id); err != nil {
		return nil, err
	}

	sess, err := s.readRecord(id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		status = "absent"
		op.logger.Debug().Msg("Session does not exist")
		return nil, nil
	}

	if s.expired(sess) {
		removed, current, rmErr := s.removeRecord(id, s.expired)
		if rmErr != nil {
			op.logger.Warn().Err(rmErr).Msg("Failed to delete expired session")
		}
		if removed {
			s.refreshActiveGauge()
			observability.AuditSession(ctx, "session.expired", id, nil)
			op.logger.Info().Time("expires_at", sess.ExpiresAt).Msg("Expired session deleted")
		}
		if current == nil {
			status = "absent"
			return nil, nil
		}
		// Replaced by a fresh record since the first read.
		op.logger.Debug().Msg("Session was renewed concurrently")
		sess = current
	}

	touched, err := s.touch(id)
	if err != nil {
		s.onTouchError(id, err)
	} else if !touched.IsZero() {
		sess.LastAccessedAt = touched
	}

	return sess, nil
}

// touch rewrites the record with a bumped last access time. It never
// creates a record, so a concurrent delete wins. The returned time is zero
// when the record disappeared.
func (s *Store) touch(id string) (time.Time, error) {
	f, err := filelock.OpenLocked(s.recordPath(id), os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	defer filelock.Release(f)

	sess, err := decodeLocked(id, f)
	if err != nil || sess == nil {
		return time.Time{}, err
	}

	now := truncate(s.now())
	if !now.After(sess.LastAccessedAt) {
		return sess.LastAccessedAt, nil
	}
	sess.LastAccessedAt = now

	out, err := encodeRecord(sess)
	if err != nil {
		return time.Time{}, err
	}
	if err := rewrite(f, out); err != nil {
		return time.Time{}, err
	}
	return now, nil
}

// Delete removes the session stored under id. Deleting a missing session
// reports false without error.
func (s *Store) Delete(ctx context.Context, id string) (_ bool, err error) {
	ctx, op := s.begin(ctx, "delete", id)
	status := "success"
	defer func() {
		if err != nil {
			status = statusOf(err)
		}
		op.end(status, err)
	}()

	if err := ValidateID(id); err != nil {
		return false, err
	}

	removed, _, err := s.removeRecord(id, nil)
	if err != nil {
		return false, err
	}
	if !removed {
		status = "absent"
		op.logger.Debug().Msg("Session already absent")
		return false, nil
	}

	s.refreshActiveGauge()
	observability.AuditSession(ctx, "session.deleted", id, nil)
	op.logger.Info().Msg("Session deleted")
	return true, nil
}

// Exists reports whether a record is stored under id, without loading,
// expiring or touching it.
func (s *Store) Exists(id string) (bool, error) {
	if err := ValidateID(id); err != nil {
		return false, err
	}
	info, err := os.Stat(s.recordPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, ioErr("open", id, err)
	}
	return info.Size() > 0, nil
}

// recordIDs lists the ids of all record files. Files whose names are not
// valid ids are skipped.
func (s *Store) recordIDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, ioErr("list", "", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, recordExt) {
			continue
		}
		id := strings.TrimSuffix(name, recordExt)
		if ValidateID(id) != nil {
			log.Debug().Str("file", name).Msg("Skipping file with invalid session id")
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// refreshActiveGauge sets sessions_active to the number of readable,
// unexpired records.
func (s *Store) refreshActiveGauge() {
	st, err := s.count()
	if err != nil {
		return
	}
	observability.SetActiveSessions(st.Active)
}

// List returns summaries of all live sessions. Each id goes through Load, so
// expired records are removed and live ones touched as a side effect.
//
// The result is a best-effort snapshot: sessions created or deleted while the
// scan runs may or may not be included.
func (s *Store) List(ctx context.Context) (_ []Summary, err error) {
	ctx, op := s.begin(ctx, "list", "")
	defer func() { op.end(statusOf(err), err) }()

	ids, err := s.recordIDs()
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(ids))
	for _, id := range ids {
		sess, err := s.Load(ctx, id)
		if err != nil {
			op.logger.Error().Str("session_id", id).Err(err).Msg("Error reading session")
			continue
		}
		if sess == nil {
			continue
		}
		summaries = append(summaries, Summarize(sess))
	}

	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
		}
		return summaries[i].ID < summaries[j].ID
	})

	op.span.SetAttributes(attribute.Int("sessions", len(summaries)))
	return summaries, nil
}

// SweepExpired deletes every expired record without going through Load and
// returns how many were removed. Unreadable records are logged and kept.
// Sessions without an expiry are never removed.
func (s *Store) SweepExpired(ctx context.Context) (_ int, err error) {
	ctx, op := s.begin(ctx, "sweep", "")
	defer func() { op.end(statusOf(err), err) }()

	count, err := s.removeWhere(ctx, op, "session.expired", func(now time.Time, sess *Session) bool {
		return IsExpired(now, sess.ExpiresAt, s.skew)
	})
	if err != nil {
		return 0, err
	}

	observability.RecordSweepRemoved("expired", count)
	if count > 0 {
		op.logger.Info().Int("removed", count).Msg("Cleaned up expired sessions")
	}
	return count, nil
}

// PurgeIdle deletes every record not accessed within maxIdle, including
// sessions without an expiry, and returns how many were removed.
func (s *Store) PurgeIdle(ctx context.Context, maxIdle time.Duration) (_ int, err error) {
	ctx, op := s.begin(ctx, "purge", "")
	defer func() { op.end(statusOf(err), err) }()

	if maxIdle <= 0 {
		return 0, fmt.Errorf("max idle must be positive, got %s", maxIdle)
	}

	count, err := s.removeWhere(ctx, op, "session.purged", func(now time.Time, sess *Session) bool {
		return IsIdle(now, sess.LastAccessedAt, maxIdle)
	})
	if err != nil {
		return 0, err
	}

	observability.RecordSweepRemoved("idle", count)
	if count > 0 {
		op.logger.Info().Int("removed", count).Dur("max_idle", maxIdle).Msg("Purged idle sessions")
	}
	return count, nil
}

func (s *Store) removeWhere(ctx context.Context, op *operation, action string, match func(time.Time, *Session) bool) (int, error) {
	ids, err := s.recordIDs()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, id := range ids {
		sess, err := s.readRecord(id)
		if err != nil {
			op.logger.Warn().Str("session_id", id).Err(err).Msg("Skipping unreadable session")
			continue
		}
		if sess == nil || !match(s.now(), sess) {
			continue
		}

		// Re-checked under the lock: a concurrent re-login may have
		// replaced the record since it was read.
		removed, _, err := s.removeRecord(id, func(current *Session) bool {
			return match(s.now(), current)
		})
		if err != nil {
			op.logger.Warn().Str("session_id", id).Err(err).Msg("Failed to delete session")
			continue
		}
		if removed {
			count++
			observability.AuditSession(ctx, action, id, nil)
			op.logger.Debug().Str("session_id", id).Msg("Session removed")
		}
	}

	if count > 0 {
		s.refreshActiveGauge()
	}
	return count, nil
}

// Stats classifies every record without modifying any of them.
func (s *Store) Stats(ctx context.Context) (_ Stats, err error) {
	_, op := s.begin(ctx, "stats", "")
	defer func() { op.end(statusOf(err), err) }()

	return s.count()
}

func (s *Store) count() (Stats, error) {
	ids, err := s.recordIDs()
	if err != nil {
		return Stats{}, err
	}

	var st Stats
	now := s.now()
	for _, id := range ids {
		sess, err := s.readRecord(id)
		if err != nil {
			st.Total++
			st.Unreadable++
			continue
		}
		if sess == nil {
			continue
		}
		st.Total++
		switch {
		case !sess.HasExpiry():
			st.OpenEnded++
			st.Active++
		case IsExpired(now, sess.ExpiresAt, s.skew):
			st.Expired++
		default:
			st.Active++
		}
	}
	return st, nil
}
