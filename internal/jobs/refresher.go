// Package jobs runs the application's periodic background work.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
)

// ScheduleRefreshJob names the job that rebuilds cached review schedules.
const ScheduleRefreshJob = "schedule-refresh"

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("job runner already started")

// Refresher rebuilds derived state. schedule.Service satisfies it.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Config holds the job runner settings.
type Config struct {
	// RefreshInterval is the gap between refresh runs. Zero disables the job.
	RefreshInterval time.Duration
}

// Runner owns a gocron scheduler that calls a Refresher on a fixed interval.
// Runs never overlap; a run still going when the next one is due is skipped.
type Runner struct {
	refresher Refresher
	config    Config
	logger    *slog.Logger

	mu        sync.Mutex
	scheduler *gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc

	runs     atomic.Int64
	failures atomic.Int64
}

// NewRunner creates a Runner. Nothing is scheduled until Start.
func NewRunner(refresher Refresher, config Config, logger *slog.Logger) (*Runner, error) {
	if refresher == nil {
		return nil, errors.New("refresher cannot be nil")
	}
	if config.RefreshInterval < 0 {
		return nil, errors.New("refresh interval cannot be negative")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		refresher: refresher,
		config:    config,
		logger:    logger.With(slog.String("component", "job_runner")),
	}, nil
}

// Enabled reports whether Start schedules anything.
func (r *Runner) Enabled() bool {
	return r.config.RefreshInterval > 0
}

// Start schedules the refresh job. The first run happens one interval after
// Start. It is a no-op when the job is disabled.
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.scheduler != nil {
		return ErrAlreadyStarted
	}
	if !r.Enabled() {
		r.logger.Info("schedule refresh disabled")
		return nil
	}

	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()
	scheduler.WaitForScheduleAll()
	scheduler.RegisterEventListeners(
		gocron.WhenJobReturnsError(func(jobName string, err error) {
			r.failures.Add(1)
			r.logger.Error("job failed",
				slog.String("job", jobName),
				slog.String("error", err.Error()))
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := scheduler.Every(r.config.RefreshInterval).Name(ScheduleRefreshJob).Do(r.refresh, ctx)
	if err != nil {
		cancel()
		return err
	}

	scheduler.StartAsync()
	r.scheduler = scheduler
	r.ctx = ctx
	r.cancel = cancel

	r.logger.Info("job runner started",
		slog.String("job", ScheduleRefreshJob),
		slog.Duration("interval", r.config.RefreshInterval))
	return nil
}

// Stop cancels any run in progress and waits for it to return.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.scheduler == nil {
		return
	}
	r.cancel()
	r.scheduler.Stop()
	r.scheduler = nil

	r.logger.Info("job runner stopped",
		slog.Int64("runs", r.runs.Load()),
		slog.Int64("failures", r.failures.Load()))
}

// Runs returns the number of completed refresh runs.
func (r *Runner) Runs() int64 {
	return r.runs.Load()
}

// Failures returns the number of refresh runs that returned an error.
func (r *Runner) Failures() int64 {
	return r.failures.Load()
}

func (r *Runner) refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.config.RefreshInterval)
	defer cancel()
	defer r.runs.Add(1)

	start := time.Now()
	if err := r.refresher.Refresh(ctx); err != nil {
		return err
	}
	r.logger.Debug("job finished",
		slog.String("job", ScheduleRefreshJob),
		slog.Duration("duration", time.Since(start)))
	return nil
}
