package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strings"

	"github.com/harun/authvault/pkg/session"
	"github.com/robfig/cron/v3"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateSessionsDir requires an absolute directory path.
func (v *Validator) ValidateSessionsDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("sessions.dir cannot be empty")
	}
	if !filepath.IsAbs(dir) {
		return fmt.Errorf("sessions.dir must be an absolute path, got %s", dir)
	}
	return nil
}

// ValidateCollisionPolicy validates a collision policy name
func (v *Validator) ValidateCollisionPolicy(policy string) error {
	if _, err := session.ParseCollisionPolicy(policy); err != nil {
		return fmt.Errorf("sessions.collision_policy: %w", err)
	}
	return nil
}

// ValidateSweepSchedule validates a cron expression or @-descriptor.
func (v *Validator) ValidateSweepSchedule(schedule string) error {
	if schedule == "" {
		return nil // Use default
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid sessions.sweep_schedule %q: %w", schedule, err)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidatePort validates a TCP port number
func (v *Validator) ValidatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// ValidateHost validates a listen host. Empty means all interfaces.
func (v *Validator) ValidateHost(host string) error {
	if host == "" || host == "localhost" {
		return nil
	}
	if net.ParseIP(host) == nil {
		return fmt.Errorf("admin.host must be an IP address or localhost, got %s", host)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	// Validate sessions
	if err := v.ValidateSessionsDir(cfg.Sessions.Dir); err != nil {
		errors = append(errors, err)
	}
	if cfg.Sessions.SkewSeconds < 0 {
		errors = append(errors, fmt.Errorf("sessions.skew_seconds must be >= 0"))
	}
	if cfg.Sessions.IdleTTLSeconds < 0 {
		errors = append(errors, fmt.Errorf("sessions.idle_ttl_seconds must be >= 0"))
	}
	if err := v.ValidateCollisionPolicy(cfg.Sessions.CollisionPolicy); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateSweepSchedule(cfg.Sessions.SweepSchedule); err != nil {
		errors = append(errors, err)
	}

	// Validate admin
	if cfg.Admin.Enabled {
		if err := v.ValidatePort(cfg.Admin.Port); err != nil {
			errors = append(errors, fmt.Errorf("admin.port: %w", err))
		}
		if err := v.ValidateHost(cfg.Admin.Host); err != nil {
			errors = append(errors, err)
		}
	}

	// Validate tracing
	if cfg.Tracing.Enabled && strings.TrimSpace(cfg.Tracing.ServiceName) == "" {
		errors = append(errors, fmt.Errorf("tracing.service_name is required when tracing is enabled"))
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errors = append(errors, fmt.Errorf("tracing.sample_ratio must be between 0 and 1"))
	}

	// Validate logging
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}
	if cfg.Logging.MaxSize < 0 {
		errors = append(errors, fmt.Errorf("logging.max_size must be >= 0"))
	}

	return errors
}
