package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harun/authvault/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestCreateAndShow(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, "create",
		"--id", "alice",
		"--credential", "opaque-token",
		"--upstream", "https://api.example.com",
		"--tenant", "acme",
		"--subject", "u-1",
		"--role", "admin",
		"--expires-in", "1h",
		"--claim", "region=eu",
	)
	require.NoError(t, err)
	assert.Equal(t, "alice\n", out)

	_, err = os.Stat(filepath.Join(env.sessionsDir, "alice.json"))
	require.NoError(t, err)

	out, _, err = env.run(t, "show", "alice", "-o", "json")
	require.NoError(t, err)
	assert.NotContains(t, out, "opaque-token")

	var view map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "alice", view["session_id"])
	assert.Equal(t, "acme", view["tenant_id"])
	assert.Equal(t, "admin", view["role_id"])
	assert.Equal(t, "https://api.example.com", view["upstream_base_url"])
	assert.Equal(t, map[string]any{"region": "eu"}, view["claims"])
	assert.NotEmpty(t, view["expires_at"])

	out, _, err = env.run(t, "show", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Session:      alice")
	assert.Contains(t, out, "Claims:       region")
	assert.NotContains(t, out, "opaque-token")
}

func TestCreateGeneratesUUID(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, "create", "--credential", "tok")
	require.NoError(t, err)

	id := strings.TrimSpace(out)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)
	assert.Len(t, id, 36)
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)

	t.Run("credential required", func(t *testing.T) {
		_, _, err := env.run(t, "create", "--id", "bob")
		assert.Error(t, err)
	})

	t.Run("invalid id", func(t *testing.T) {
		_, _, err := env.run(t, "create", "--id", "../escape", "--credential", "tok")
		require.Error(t, err)
		assert.ErrorIs(t, err, session.ErrInvalidIdentifier)

		entries, err := os.ReadDir(env.sessionsDir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("bad expires-at", func(t *testing.T) {
		_, _, err := env.run(t, "create", "--credential", "tok", "--expires-at", "tomorrow")
		assert.Error(t, err)
	})

	t.Run("expiry flags are exclusive", func(t *testing.T) {
		_, _, err := env.run(t, "create", "--credential", "tok", "--expires-in", "1h", "--expires-at", "2030-01-01T00:00:00Z")
		assert.Error(t, err)
	})
}

func TestShowMissingSession(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run(t, "show", "nobody")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestShowRejectsUnknownFormat(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run(t, "show", "alice", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")
}

func TestList(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, "list")
	require.NoError(t, err)
	assert.Equal(t, "No sessions\n", out)

	out, _, err = env.run(t, "list", "-o", "json")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)

	for _, id := range []string{"alice", "bob"} {
		_, _, err := env.run(t, "create", "--id", id, "--credential", "secret-"+id, "--tenant", "acme")
		require.NoError(t, err)
	}

	t.Run("table", func(t *testing.T) {
		out, _, err := env.run(t, "list")
		require.NoError(t, err)
		assert.Contains(t, out, "SESSION")
		assert.Contains(t, out, "alice")
		assert.Contains(t, out, "bob")
		assert.Contains(t, out, "never")
		assert.NotContains(t, out, "secret-")
	})

	t.Run("json", func(t *testing.T) {
		out, _, err := env.run(t, "list", "-o", "json")
		require.NoError(t, err)

		var summaries []session.Summary
		require.NoError(t, json.Unmarshal([]byte(out), &summaries))
		require.Len(t, summaries, 2)
		ids := []string{summaries[0].ID, summaries[1].ID}
		assert.ElementsMatch(t, []string{"alice", "bob"}, ids)
		assert.NotContains(t, out, "secret-")
	})

	t.Run("yaml", func(t *testing.T) {
		out, _, err := env.run(t, "list", "-o", "yaml")
		require.NoError(t, err)

		var summaries []map[string]any
		require.NoError(t, yaml.Unmarshal([]byte(out), &summaries))
		require.Len(t, summaries, 2)
		assert.Equal(t, "acme", summaries[0]["tenant_id"])
		assert.NotContains(t, out, "secret-")
	})
}

func TestDelete(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run(t, "create", "--id", "alice", "--credential", "tok")
	require.NoError(t, err)

	out, _, err := env.run(t, "delete", "alice", "ghost")
	require.NoError(t, err)
	assert.Contains(t, out, "alice: deleted")
	assert.Contains(t, out, "ghost: not found")

	out, _, err = env.run(t, "rm", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "alice: not found")

	_, stderr, err := env.run(t, "delete", "no/slash")
	require.Error(t, err)
	assert.Contains(t, stderr, "invalid session identifier")
}

func TestSweep(t *testing.T) {
	env := newTestEnv(t)

	past := time.Now().Add(-2 * time.Hour).UTC().Format(time.RFC3339)
	_, _, err := env.run(t, "create", "--id", "stale", "--credential", "tok", "--expires-at", past)
	require.NoError(t, err)
	_, _, err = env.run(t, "create", "--id", "forever", "--credential", "tok")
	require.NoError(t, err)

	out, _, err := env.run(t, "sweep")
	require.NoError(t, err)
	assert.Equal(t, "Removed 1 expired session(s)\n", out)

	_, err = os.Stat(filepath.Join(env.sessionsDir, "stale.json"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(env.sessionsDir, "forever.json"))
	assert.NoError(t, err)
}

func TestPurge(t *testing.T) {
	env := newTestEnv(t)

	// Seed a record last accessed two hours ago.
	old := time.Now().Add(-2 * time.Hour)
	store, err := session.NewStore(env.sessionsDir, session.Options{Now: func() time.Time { return old }})
	require.NoError(t, err)
	_, err = store.Create(context.Background(), session.Fields{Credential: "tok"}, "idle")
	require.NoError(t, err)

	_, _, err = env.run(t, "create", "--id", "fresh", "--credential", "tok")
	require.NoError(t, err)

	t.Run("requires a threshold", func(t *testing.T) {
		_, _, err := env.run(t, "purge")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "idle threshold")
	})

	t.Run("removes idle sessions", func(t *testing.T) {
		out, _, err := env.run(t, "purge", "--idle", "1h")
		require.NoError(t, err)
		assert.Contains(t, out, "Removed 1 session(s)")

		_, err = os.Stat(filepath.Join(env.sessionsDir, "idle.json"))
		assert.True(t, os.IsNotExist(err))
		_, err = os.Stat(filepath.Join(env.sessionsDir, "fresh.json"))
		assert.NoError(t, err)
	})
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)

	past := time.Now().Add(-2 * time.Hour).UTC().Format(time.RFC3339)
	_, _, err := env.run(t, "create", "--id", "stale", "--credential", "tok", "--expires-at", past)
	require.NoError(t, err)
	_, _, err = env.run(t, "create", "--id", "live", "--credential", "tok")
	require.NoError(t, err)

	out, _, err := env.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Status: stopped")
	assert.Contains(t, out, "Sessions dir: "+env.sessionsDir)
	assert.Contains(t, out, "2 total, 1 active, 1 expired, 1 open-ended, 0 unreadable")

	// status never deletes
	_, err = os.Stat(filepath.Join(env.sessionsDir, "stale.json"))
	assert.NoError(t, err)
}

func TestStatusReportsRunningDaemon(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.MkdirAll(env.dataDir, 0700))
	// This test process stands in for the daemon.
	require.NoError(t, os.WriteFile(filepath.Join(env.dataDir, "authvault.pid"), []byte(strconv.Itoa(os.Getpid())), 0600))

	out, _, err := env.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Status: running")
	assert.Contains(t, out, "Uptime:")
}

func TestStopWhenNotRunning(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run(t, "stop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not running")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"seconds only", 45 * time.Second, "45s"},
		{"minutes and seconds", 2*time.Minute + 30*time.Second, "2m30s"},
		{"hours minutes seconds", 3*time.Hour + 15*time.Minute + 20*time.Second, "3h15m20s"},
		{"zero", 0, "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatDuration(tt.duration))
		})
	}
}

func TestFormatExpiry(t *testing.T) {
	now := time.Unix(1_760_000_000, 0).UTC()

	assert.Equal(t, "never", formatExpiry(now, time.Time{}, time.Minute))
	assert.Equal(t, "expired", formatExpiry(now, now.Add(30*time.Second), time.Minute))
	assert.Contains(t, formatExpiry(now, now.Add(time.Hour), time.Minute), "(in 1h0m0s)")
}
