package session

import (
	"maps"
	"time"
)

// Fields are the caller-supplied attributes of a new session.
type Fields struct {
	Credential      string
	UpstreamBaseURL string
	TenantID        string
	SubjectID       string
	RoleID          string
	// ExpiresAt is stored with second precision. The zero value means the
	// session never expires by time.
	ExpiresAt time.Time
	// Claims must be JSON-encodable. They are stored and returned in their
	// decoded JSON form: numbers come back as float64, slices as []any and
	// nested objects as map[string]any.
	Claims map[string]any
}

// Session is a persisted authentication context.
type Session struct {
	ID              string
	Credential      string
	UpstreamBaseURL string
	TenantID        string
	SubjectID       string
	RoleID          string
	ExpiresAt       time.Time
	CreatedAt       time.Time
	LastAccessedAt  time.Time
	Claims          map[string]any
}

// Fields returns the business fields of the session.
func (s *Session) Fields() Fields {
	return Fields{
		Credential:      s.Credential,
		UpstreamBaseURL: s.UpstreamBaseURL,
		TenantID:        s.TenantID,
		SubjectID:       s.SubjectID,
		RoleID:          s.RoleID,
		ExpiresAt:       s.ExpiresAt,
		Claims:          maps.Clone(s.Claims),
	}
}

// HasExpiry reports whether the session carries an expiry timestamp.
func (s *Session) HasExpiry() bool {
	return !s.ExpiresAt.IsZero()
}

// Summary is the credential-free view of a session returned by List.
type Summary struct {
	ID              string    `json:"session_id" yaml:"session_id"`
	TenantID        string    `json:"tenant_id" yaml:"tenant_id"`
	SubjectID       string    `json:"subject_id" yaml:"subject_id"`
	RoleID          string    `json:"role_id" yaml:"role_id"`
	UpstreamBaseURL string    `json:"upstream_base_url" yaml:"upstream_base_url"`
	CreatedAt       time.Time `json:"created_at" yaml:"created_at"`
	LastAccessedAt  time.Time `json:"last_accessed_at" yaml:"last_accessed_at"`
	ExpiresAt       time.Time `json:"expires_at,omitzero" yaml:"expires_at,omitempty"`
}

// Summarize builds the Summary of s.
func Summarize(s *Session) Summary {
	return Summary{
		ID:              s.ID,
		TenantID:        s.TenantID,
		SubjectID:       s.SubjectID,
		RoleID:          s.RoleID,
		UpstreamBaseURL: s.UpstreamBaseURL,
		CreatedAt:       s.CreatedAt,
		LastAccessedAt:  s.LastAccessedAt,
		ExpiresAt:       s.ExpiresAt,
	}
}

// Stats counts records by state without modifying any of them.
type Stats struct {
	Total      int `json:"total" yaml:"total"`
	Active     int `json:"active" yaml:"active"`
	Expired    int `json:"expired" yaml:"expired"`
	OpenEnded  int `json:"open_ended" yaml:"open_ended"`
	Unreadable int `json:"unreadable" yaml:"unreadable"`
}
