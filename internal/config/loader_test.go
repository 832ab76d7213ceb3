package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader("/path/to/config.json")
	assert.NotNil(t, loader)
	assert.Equal(t, "/path/to/config.json", loader.configPath)
}

func TestLoaderLoad(t *testing.T) {
	t.Run("load default config when file doesn't exist", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		configPath := filepath.Join(t.TempDir(), "nonexistent.json")

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, "overwrite", cfg.Sessions.CollisionPolicy)
		assert.Equal(t, filepath.Join(home, ".authvault"), cfg.DataDir)
		assert.Equal(t, filepath.Join(home, ".authvault", "sessions"), cfg.Sessions.Dir)
		assert.Equal(t, filepath.Join(home, ".authvault", "authvault.log"), cfg.Logging.File)
	})

	t.Run("load config from file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")

		testConfig := `{
			"sessions": {
				"dir": "/srv/sessions",
				"skew_seconds": 30,
				"collision_policy": "reject"
			},
			"admin": {
				"port": 8088
			}
		}`
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, "/srv/sessions", cfg.Sessions.Dir)
		assert.Equal(t, 30, cfg.Sessions.SkewSeconds)
		assert.Equal(t, "reject", cfg.Sessions.CollisionPolicy)
		assert.Equal(t, 8088, cfg.Admin.Port)
		// untouched keys keep their defaults
		assert.Equal(t, "@every 15m", cfg.Sessions.SweepSchedule)
		assert.Equal(t, "127.0.0.1", cfg.Admin.Host)
	})

	t.Run("load yaml config", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.yaml")

		testConfig := "sessions:\n  dir: /srv/yaml-sessions\n  idle_ttl_seconds: 600\nlogging:\n  level: debug\n"
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, "/srv/yaml-sessions", cfg.Sessions.Dir)
		assert.Equal(t, 600, cfg.Sessions.IdleTTLSeconds)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("sessions dir from environment", func(t *testing.T) {
		t.Setenv("AUTHVAULT_SESSIONS_DIR", "/env/sessions")
		t.Setenv("AUTHVAULT_SESSIONS_SKEW_SECONDS", "15")
		configPath := filepath.Join(t.TempDir(), "missing.json")

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, "/env/sessions", cfg.Sessions.Dir)
		assert.Equal(t, 15, cfg.Sessions.SkewSeconds)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{"sessions":{"dir":"/file/sessions"}}`), 0644))
		t.Setenv("AUTHVAULT_SESSIONS_DIR", "/env/sessions")

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, "/env/sessions", cfg.Sessions.Dir)
	})

	t.Run("set default paths", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{"data_dir": "/data/av"}`), 0644))

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, "/data/av", cfg.DataDir)
		assert.Equal(t, "/data/av/sessions", cfg.Sessions.Dir)
		assert.Equal(t, "/data/av/authvault.log", cfg.Logging.File)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "invalid.json")
		require.NoError(t, os.WriteFile(configPath, []byte("invalid json"), 0644))

		_, err := NewLoader(configPath).Load()

		assert.Error(t, err)
	})
}

func TestLoaderSave(t *testing.T) {
	t.Run("save config to file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")

		cfg := DefaultConfig()
		cfg.Sessions.Dir = "/srv/sessions"
		cfg.Sessions.CollisionPolicy = "reject"
		cfg.Admin.Port = 9999

		require.NoError(t, NewLoader(configPath).Save(cfg))

		info, err := os.Stat(configPath)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

		loaded, err := NewLoader(configPath).Load()
		require.NoError(t, err)
		assert.Equal(t, "/srv/sessions", loaded.Sessions.Dir)
		assert.Equal(t, "reject", loaded.Sessions.CollisionPolicy)
		assert.Equal(t, 9999, loaded.Admin.Port)
	})

	t.Run("save yaml config", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.yml")

		cfg := DefaultConfig()
		cfg.Sessions.Dir = "/srv/yaml"
		cfg.Sessions.IdleTTLSeconds = 120

		require.NoError(t, NewLoader(configPath).Save(cfg))

		content, err := os.ReadFile(configPath)
		require.NoError(t, err)
		assert.Contains(t, string(content), "idle_ttl_seconds: 120")

		loaded, err := NewLoader(configPath).Load()
		require.NoError(t, err)
		assert.Equal(t, "/srv/yaml", loaded.Sessions.Dir)
		assert.Equal(t, 120, loaded.Sessions.IdleTTLSeconds)
	})

	t.Run("create directory if not exists", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "subdir", "config.json")

		require.NoError(t, NewLoader(configPath).Save(DefaultConfig()))

		_, err := os.Stat(filepath.Dir(configPath))
		assert.NoError(t, err)
	})
}

func TestLoaderGetConfigPath(t *testing.T) {
	t.Run("custom path", func(t *testing.T) {
		loader := NewLoader("/custom/path/config.json")
		assert.Equal(t, "/custom/path/config.json", loader.GetConfigPath())
	})

	t.Run("default path", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)

		path := NewLoader("").GetConfigPath()
		assert.Equal(t, filepath.Join(home, ".authvault", "authvault.json"), path)
	})
}
