package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

const (
	recordVersion = 1
	recordExt     = ".json"
)

// record is the on-disk form of a Session. Timestamps are Unix seconds.
type record struct {
	Version         int            `json:"version"`
	SessionID       string         `json:"session_id"`
	Credential      string         `json:"credential"`
	UpstreamBaseURL string         `json:"upstream_base_url"`
	TenantID        string         `json:"tenant_id"`
	SubjectID       string         `json:"subject_id"`
	RoleID          string         `json:"role_id"`
	ExpiresAt       *int64         `json:"expires_at,omitempty"`
	CreatedAt       int64          `json:"created_at"`
	LastAccessedAt  int64          `json:"last_accessed_at"`
	Claims          map[string]any `json:"claims"`
}

const recordSchema = `{
	"type": "object",
	"required": ["version", "session_id", "credential", "created_at", "last_accessed_at"],
	"properties": {
		"version": {"type": "integer", "minimum": 1},
		"session_id": {"type": "string", "minLength": 3, "maxLength": 64},
		"credential": {"type": "string"},
		"upstream_base_url": {"type": "string"},
		"tenant_id": {"type": "string"},
		"subject_id": {"type": "string"},
		"role_id": {"type": "string"},
		"expires_at": {"type": "integer"},
		"created_at": {"type": "integer"},
		"last_accessed_at": {"type": "integer"},
		"claims": {"type": ["object", "null"]}
	}
}`

var loadRecordSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(recordSchema))
})

func encodeRecord(s *Session) ([]byte, error) {
	rec := record{
		Version:         recordVersion,
		SessionID:       s.ID,
		Credential:      s.Credential,
		UpstreamBaseURL: s.UpstreamBaseURL,
		TenantID:        s.TenantID,
		SubjectID:       s.SubjectID,
		RoleID:          s.RoleID,
		CreatedAt:       s.CreatedAt.Unix(),
		LastAccessedAt:  s.LastAccessedAt.Unix(),
		Claims:          s.Claims,
	}
	if rec.Claims == nil {
		rec.Claims = map[string]any{}
	}
	if !s.ExpiresAt.IsZero() {
		exp := s.ExpiresAt.Unix()
		rec.ExpiresAt = &exp
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session record: %w", err)
	}
	return append(data, '\n'), nil
}

func decodeRecord(data []byte) (*Session, error) {
	schema, err := loadRecordSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to compile session record schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse session record: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, errors.New("invalid session record: " + strings.Join(msgs, "; "))
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session record: %w", err)
	}
	if rec.Version > recordVersion {
		return nil, fmt.Errorf("unsupported session record version %d", rec.Version)
	}

	s := &Session{
		ID:              rec.SessionID,
		Credential:      rec.Credential,
		UpstreamBaseURL: rec.UpstreamBaseURL,
		TenantID:        rec.TenantID,
		SubjectID:       rec.SubjectID,
		RoleID:          rec.RoleID,
		CreatedAt:       unixTime(rec.CreatedAt),
		LastAccessedAt:  unixTime(rec.LastAccessedAt),
		Claims:          rec.Claims,
	}
	if rec.ExpiresAt != nil {
		s.ExpiresAt = unixTime(*rec.ExpiresAt)
	}
	return s, nil
}

// normalizeClaims returns claims as they read back from a record: a deep
// copy holding only JSON types (numbers become float64).
func normalizeClaims(claims map[string]any) (map[string]any, error) {
	if len(claims) == 0 {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal claims: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal claims: %w", err)
	}
	return out, nil
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

// truncate drops sub-second precision so values survive a round trip.
func truncate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return unixTime(t.Unix())
}
