package daemon

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/harun/authvault/internal/admin"
	"github.com/harun/authvault/internal/config"
	"github.com/harun/authvault/internal/logger"
	"github.com/harun/authvault/internal/observability"
	"github.com/harun/authvault/internal/tracing"
	"github.com/harun/authvault/pkg/session"
)

const shutdownTimeout = 5 * time.Second

// Daemon is the long-running authvault process: it owns the session store
// and runs housekeeping, the directory watcher and the admin server.
type Daemon struct {
	config *config.Config
	logger *logger.Logger

	store     *session.Store
	sweeper   *session.Sweeper
	watcher   *session.DirWatcher
	admin     *admin.Server
	lifecycle *LifecycleManager

	startTime time.Time
	running   bool
	mu        sync.RWMutex

	tracingEnabled bool
	auditEnabled   bool
}

// Status is a point-in-time view of the daemon.
type Status struct {
	Running   bool
	Uptime    time.Duration
	StartTime time.Time
}

// New builds a daemon from cfg. Nothing runs until Start.
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	observability.EnsureRegistered()

	d := &Daemon{
		config: cfg,
		logger: log,
	}

	if cfg.Tracing.Enabled {
		if err := tracing.Init(tracing.Config{
			ServiceName: cfg.Tracing.ServiceName,
			SampleRatio: cfg.Tracing.SampleRatio,
		}); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
		} else {
			d.tracingEnabled = true
			log.Info().Msg("Tracing initialized successfully")
		}
	}

	store, err := OpenStore(cfg)
	if err != nil {
		d.shutdownTracing()
		return nil, err
	}
	d.store = store

	d.sweeper = session.NewSweeper(store, session.SweeperConfig{
		Schedule: cfg.Sessions.SweepSchedule,
		IdleTTL:  cfg.Sessions.IdleTTL(),
	})

	if cfg.Admin.Enabled {
		d.admin = admin.NewServer(cfg.Admin.Addr(), store, log.GetZerolog())
	}

	d.lifecycle = NewLifecycleManager(d)

	return d, nil
}

// OpenStore constructs the session store described by cfg.
func OpenStore(cfg *config.Config) (*session.Store, error) {
	policy, err := session.ParseCollisionPolicy(cfg.Sessions.CollisionPolicy)
	if err != nil {
		return nil, err
	}

	store, err := session.NewStore(cfg.Sessions.Dir, session.Options{
		Skew:      cfg.Sessions.Skew(),
		Collision: policy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	return store, nil
}

// Start starts housekeeping, the watcher and the admin server and writes
// the PID file.
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	logger := d.logger.GetZerolog().With().Str("trace_id", traceID).Logger()
	logger.Info().Str("sessions_dir", d.store.Dir()).Msg("Starting authvault daemon")

	if err := d.lifecycle.Start(); err != nil {
		d.setStopped()
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	if err := d.startAudit(); err != nil {
		logger.Warn().Err(err).Msg("Failed to open audit log, audit events go to stderr")
	}

	if err := d.sweeper.Start(); err != nil {
		d.rollback()
		return fmt.Errorf("failed to start session sweeper: %w", err)
	}
	logger.Info().Str("schedule", d.sweeper.Schedule()).Msg("Session sweeper started")

	if d.config.Sessions.Watch {
		watcher, err := d.store.Watch(session.DefaultWatchDebounce)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to start sessions directory watcher")
		} else {
			d.watcher = watcher
			logger.Info().Msg("Sessions directory watcher started")
		}
	}

	if d.admin != nil {
		if err := d.admin.Start(); err != nil {
			d.rollback()
			return fmt.Errorf("failed to start admin server: %w", err)
		}
		logger.Info().Str("addr", d.admin.Addr()).Msg("Admin server started")
	}

	logger.Info().Msg("Daemon started successfully")
	return nil
}

func (d *Daemon) startAudit() error {
	if err := observability.OpenAuditLog(filepath.Join(d.config.DataDir, "audit.log")); err != nil {
		return err
	}
	d.auditEnabled = true
	return nil
}

// rollback undoes a partial Start.
func (d *Daemon) rollback() {
	if d.watcher != nil {
		_ = d.watcher.Stop()
		d.watcher = nil
	}
	if d.sweeper.IsRunning() {
		_ = d.sweeper.Stop()
	}
	_ = d.lifecycle.Stop()
	d.setStopped()
}

func (d *Daemon) setStopped() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}

// Stop stops the daemon gracefully
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	logger := d.logger.GetZerolog().With().Str("trace_id", traceID).Logger()
	logger.Info().Msg("Stopping authvault daemon")

	var errs []error

	if d.admin != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := d.admin.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("Failed to stop admin server")
			errs = append(errs, err)
		}
		cancel()
	}

	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop sessions directory watcher")
			errs = append(errs, err)
		}
		d.watcher = nil
	}

	if d.sweeper.IsRunning() {
		if err := d.sweeper.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop session sweeper")
			errs = append(errs, err)
		}
	}

	if err := d.lifecycle.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop lifecycle manager")
		errs = append(errs, err)
	}

	d.shutdownTracing()

	if d.auditEnabled {
		if err := observability.CloseAuditLog(); err != nil {
			logger.Error().Err(err).Msg("Failed to close audit logger")
		}
		d.auditEnabled = false
	}

	logger.Info().Msg("Daemon stopped")
	return errors.Join(errs...)
}

func (d *Daemon) shutdownTracing() {
	if !d.tracingEnabled {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := tracing.Shutdown(ctx); err != nil {
		d.logger.Error().Err(err).Msg("Failed to shutdown tracing")
	}
	d.tracingEnabled = false
}

// Status returns the daemon status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running: d.running,
	}

	if d.running {
		status.Uptime = time.Since(d.startTime)
		status.StartTime = d.startTime
	}

	return status
}

// Wait blocks until SIGINT, SIGTERM or ctx cancellation, then stops the
// daemon.
func (d *Daemon) Wait(ctx context.Context) error {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-sigCtx.Done()
	if ctx.Err() == nil {
		d.logger.Info().Msg("Received shutdown signal")
	}

	return d.Stop()
}

// Store returns the session store
func (d *Daemon) Store() *session.Store {
	return d.store
}

// Admin returns the admin server, nil when disabled
func (d *Daemon) Admin() *admin.Server {
	return d.admin
}

// GetConfig returns the daemon configuration
func (d *Daemon) GetConfig() *config.Config {
	return d.config
}

// PIDFile returns the PID file path
func (d *Daemon) PIDFile() string {
	return d.lifecycle.pidFile
}
