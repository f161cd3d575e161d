package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/adityak74/weatherweave/internal/core/domain"
)

// PipelineRunner is the part of Pipeline the updater needs.
type PipelineRunner interface {
	Run(ctx context.Context, trigger domain.RunTrigger) (domain.Artifact, domain.RunID, error)
}

// AutoUpdater regenerates the wallpaper on an interval and on wake.
type AutoUpdater struct {
	logger    *slog.Logger
	runner    PipelineRunner
	scheduler *gocron.Scheduler

	mu       sync.Mutex
	ctx      context.Context
	job      *gocron.Job
	enabled  bool
	interval time.Duration
	onWake   bool
}

func NewAutoUpdater(logger *slog.Logger, runner PipelineRunner) *AutoUpdater {
	return &AutoUpdater{
		logger:    logger,
		runner:    runner,
		scheduler: gocron.NewScheduler(time.Local),
		ctx:       context.Background(),
	}
}

// Run starts the scheduler with cfg and blocks until ctx is cancelled.
func (u *AutoUpdater) Run(ctx context.Context, cfg *domain.AppConfig) error {
	u.mu.Lock()
	u.ctx = ctx
	u.mu.Unlock()

	if err := u.Apply(cfg); err != nil {
		return err
	}
	u.scheduler.StartAsync()
	u.logger.Info("auto updater started")

	<-ctx.Done()
	u.scheduler.Stop()
	u.logger.Info("auto updater stopped")
	return nil
}

// Apply reschedules according to cfg. Safe to call from settings callbacks.
func (u *AutoUpdater) Apply(cfg *domain.AppConfig) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	interval := cfg.UpdateInterval.Duration()
	if interval <= 0 {
		interval = domain.DefaultConfig().UpdateInterval.Duration()
	}
	u.onWake = cfg.UpdateOnWake

	if u.enabled == cfg.AutoUpdate && u.interval == interval && (u.job != nil) == cfg.AutoUpdate {
		return nil
	}

	if u.job != nil {
		u.scheduler.RemoveByReference(u.job)
		u.job = nil
	}
	u.enabled = cfg.AutoUpdate
	u.interval = interval

	if !cfg.AutoUpdate {
		u.logger.Info("auto update disabled")
		return nil
	}

	job, err := u.scheduler.Every(interval).WaitForSchedule().SingletonMode().Do(u.tick, domain.TriggerSchedule)
	if err != nil {
		return err
	}
	u.job = job
	u.logger.Info("auto update scheduled", "interval", interval)
	return nil
}

// Interval reports the active schedule; zero when disabled.
func (u *AutoUpdater) Interval() time.Duration {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.job == nil {
		return 0
	}
	return u.interval
}

// TriggerWake runs the pipeline once if update-on-wake is enabled.
// It reports whether a run was started.
func (u *AutoUpdater) TriggerWake() bool {
	u.mu.Lock()
	onWake := u.onWake
	u.mu.Unlock()

	if !onWake {
		return false
	}
	go u.tick(domain.TriggerWake)
	return true
}

func (u *AutoUpdater) tick(trigger domain.RunTrigger) {
	u.mu.Lock()
	ctx := u.ctx
	u.mu.Unlock()

	if ctx.Err() != nil {
		return
	}

	_, runID, err := u.runner.Run(ctx, trigger)
	switch {
	case errors.Is(err, domain.ErrPipelineBusy):
		u.logger.Info("skipping update, a run is already in progress", "trigger", trigger)
	case err != nil:
		u.logger.Warn("scheduled update failed", "trigger", trigger, "run_id", runID, "error", err)
	}
}
