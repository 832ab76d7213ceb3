package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultSweepSchedule runs housekeeping every fifteen minutes.
const DefaultSweepSchedule = "@every 15m"

// SweepResult reports what one housekeeping pass removed.
type SweepResult struct {
	Expired int
	Idle    int
}

// SweeperConfig configures a Sweeper.
type SweeperConfig struct {
	// Schedule is a standard cron expression or descriptor such as "@every 5m".
	Schedule string
	// IdleTTL, when positive, also purges sessions idle for at least this long.
	IdleTTL time.Duration
}

// Sweeper periodically removes expired (and optionally idle) sessions.
type Sweeper struct {
	store    *Store
	schedule string
	idleTTL  time.Duration

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
	initial sync.WaitGroup
}

// NewSweeper creates a sweeper for store.
func NewSweeper(store *Store, cfg SweeperConfig) *Sweeper {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSweepSchedule
	}
	return &Sweeper{
		store:    store,
		schedule: cfg.Schedule,
		idleTTL:  cfg.IdleTTL,
	}
}

// Start schedules the sweep and runs one pass immediately.
func (sw *Sweeper) Start() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.running {
		return fmt.Errorf("sweeper is already running")
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(sw.schedule, sw.run); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", sw.schedule, err)
	}

	sw.cron = c
	sw.running = true
	c.Start()
	sw.initial.Add(1)
	go func() {
		defer sw.initial.Done()
		sw.run()
	}()

	log.Info().
		Str("schedule", sw.schedule).
		Dur("idle_ttl", sw.idleTTL).
		Msg("Session sweeper started")

	return nil
}

// Stop stops scheduling and waits for a running pass to finish.
func (sw *Sweeper) Stop() error {
	sw.mu.Lock()
	if !sw.running {
		sw.mu.Unlock()
		return fmt.Errorf("sweeper is not running")
	}
	c := sw.cron
	sw.cron = nil
	sw.running = false
	sw.mu.Unlock()

	<-c.Stop().Done()
	sw.initial.Wait()

	log.Info().Msg("Session sweeper stopped")
	return nil
}

// IsRunning returns whether the sweeper is scheduled.
func (sw *Sweeper) IsRunning() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.running
}

// Schedule returns the cron schedule in use.
func (sw *Sweeper) Schedule() string {
	return sw.schedule
}

func (sw *Sweeper) run() {
	if _, err := sw.SweepNow(context.Background()); err != nil {
		log.Error().Err(err).Msg("Failed to sweep sessions")
	}
}

// SweepNow runs one housekeeping pass immediately.
func (sw *Sweeper) SweepNow(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	expired, err := sw.store.SweepExpired(ctx)
	if err != nil {
		return res, err
	}
	res.Expired = expired

	if sw.idleTTL > 0 {
		idle, err := sw.store.PurgeIdle(ctx, sw.idleTTL)
		if err != nil {
			return res, err
		}
		res.Idle = idle
	}

	return res, nil
}
