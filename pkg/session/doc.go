// Package session persists per-user authentication context as one JSON file
// per session.
//
// Invariants:
// - Session ids are validated before any path is derived from them.
// - Every read and write of a record holds that record's exclusive file lock,
//   and no operation holds more than one record lock at a time.
// - A record that cannot be parsed is reported, never deleted.
// - Expiry is decided by IsExpired alone, for both Load and SweepExpired.
//
// Usage:
//
//	store, _ := session.NewStore("/var/lib/authvault/sessions", session.Options{})
//	id, _ := store.Create(ctx, session.Fields{Credential: token, ExpiresAt: exp}, "")
//	sess, _ := store.Load(ctx, id)
//	if sess == nil {
//		// not found or expired: re-authenticate
//	}
package session
