package session

import "time"

// DefaultSkew absorbs clock drift between the expiry issuer and this host.
const DefaultSkew = 60 * time.Second

// IsExpired reports whether a session expiring at expiresAt is expired at now.
// The boundary is inclusive: now == expiresAt-skew is expired. A zero
// expiresAt never expires.
func IsExpired(now, expiresAt time.Time, skew time.Duration) bool {
	if expiresAt.IsZero() {
		return false
	}
	return !now.Before(expiresAt.Add(-skew))
}

// IsIdle reports whether lastAccessed is at least maxIdle before now.
// A non-positive maxIdle disables the check.
func IsIdle(now, lastAccessed time.Time, maxIdle time.Duration) bool {
	if maxIdle <= 0 {
		return false
	}
	return now.Sub(lastAccessed) >= maxIdle
}
