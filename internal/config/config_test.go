package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, 60, cfg.Sessions.SkewSeconds)
	assert.Equal(t, "overwrite", cfg.Sessions.CollisionPolicy)
	assert.Equal(t, "@every 15m", cfg.Sessions.SweepSchedule)
	assert.Zero(t, cfg.Sessions.IdleTTLSeconds)
	assert.True(t, cfg.Sessions.Watch)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Redaction)
	assert.True(t, cfg.Admin.Enabled)
	assert.Equal(t, "127.0.0.1:9470", cfg.Admin.Addr())
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, "authvault", cfg.Tracing.ServiceName)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRatio)
}

func TestSessionsDurations(t *testing.T) {
	cfg := SessionsConfig{SkewSeconds: 90, IdleTTLSeconds: 3600}

	assert.Equal(t, 90*time.Second, cfg.Skew())
	assert.Equal(t, time.Hour, cfg.IdleTTL())
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Sessions.Dir = "/var/lib/authvault/sessions"
		return cfg
	}

	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("missing sessions dir", func(t *testing.T) {
		cfg := valid()
		cfg.Sessions.Dir = ""
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "sessions.dir")
	})

	t.Run("negative skew", func(t *testing.T) {
		cfg := valid()
		cfg.Sessions.SkewSeconds = -1
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative idle ttl", func(t *testing.T) {
		cfg := valid()
		cfg.Sessions.IdleTTLSeconds = -5
		assert.Error(t, cfg.Validate())
	})

	t.Run("admin port out of range", func(t *testing.T) {
		cfg := valid()
		cfg.Admin.Port = 70000
		assert.Error(t, cfg.Validate())
	})

	t.Run("admin port ignored when disabled", func(t *testing.T) {
		cfg := valid()
		cfg.Admin.Enabled = false
		cfg.Admin.Port = 0
		assert.NoError(t, cfg.Validate())
	})
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()
	s := cfg.String()

	assert.True(t, strings.HasPrefix(s, "{"))
	assert.Contains(t, s, `"collision_policy": "overwrite"`)
}
