package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config represents the main authvault configuration
type Config struct {
	// Session store
	Sessions SessionsConfig `json:"sessions" mapstructure:"sessions"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Admin HTTP server used by serve
	Admin AdminConfig `json:"admin" mapstructure:"admin"`

	// OpenTelemetry tracing
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// SessionsConfig holds session store configuration
type SessionsConfig struct {
	Dir             string `json:"dir" mapstructure:"dir"`
	SkewSeconds     int    `json:"skew_seconds" mapstructure:"skew_seconds"`
	CollisionPolicy string `json:"collision_policy" mapstructure:"collision_policy"` // overwrite, reject
	SweepSchedule   string `json:"sweep_schedule" mapstructure:"sweep_schedule"`     // cron spec or @every
	IdleTTLSeconds  int    `json:"idle_ttl_seconds" mapstructure:"idle_ttl_seconds"` // 0 disables idle purge
	Watch           bool   `json:"watch" mapstructure:"watch"`
}

// Skew returns the expiry skew as a duration.
func (c SessionsConfig) Skew() time.Duration {
	return time.Duration(c.SkewSeconds) * time.Second
}

// IdleTTL returns the idle purge threshold as a duration.
func (c SessionsConfig) IdleTTL() time.Duration {
	return time.Duration(c.IdleTTLSeconds) * time.Second
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// AdminConfig holds the admin server configuration
type AdminConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Host    string `json:"host" mapstructure:"host"`
	Port    int    `json:"port" mapstructure:"port"`
}

// Addr returns the host:port the admin server listens on.
func (c AdminConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	ServiceName string  `json:"service_name" mapstructure:"service_name"`
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Sessions: SessionsConfig{
			SkewSeconds:     60,
			CollisionPolicy: "overwrite",
			SweepSchedule:   "@every 15m",
			IdleTTLSeconds:  0,
			Watch:           true,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Admin: AdminConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    9470,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "authvault",
			SampleRatio: 1,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks the values a store cannot start without. The Validator
// performs the full per-field check.
func (c *Config) Validate() error {
	if c.Sessions.Dir == "" {
		return fmt.Errorf("sessions.dir is required")
	}
	if c.Sessions.SkewSeconds < 0 {
		return fmt.Errorf("sessions.skew_seconds must be >= 0, got %d", c.Sessions.SkewSeconds)
	}
	if c.Sessions.IdleTTLSeconds < 0 {
		return fmt.Errorf("sessions.idle_ttl_seconds must be >= 0, got %d", c.Sessions.IdleTTLSeconds)
	}
	if c.Admin.Enabled && (c.Admin.Port <= 0 || c.Admin.Port > 65535) {
		return fmt.Errorf("admin.port must be between 1 and 65535, got %d", c.Admin.Port)
	}
	return nil
}
