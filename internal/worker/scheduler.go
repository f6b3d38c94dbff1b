package worker

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// DefaultRefreshInterval is how often the pipeline runs when no
// interval is configured. OpenAQ publishes hourly readings, so more
// frequent runs only re-fetch the same data.
const DefaultRefreshInterval = time.Hour

// Scheduler runs the pipeline refresh job on a fixed interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	job       *RefreshJob
	interval  time.Duration
	timeout   time.Duration
	logger    zerolog.Logger
}

// SchedulerConfig holds configuration for the pipeline scheduler.
type SchedulerConfig struct {
	// Interval between pipeline runs. Default: DefaultRefreshInterval.
	Interval time.Duration

	// Timeout for one full pipeline run. Default: 10 minutes.
	Timeout time.Duration

	Job    *RefreshJob
	Logger zerolog.Logger
}

// NewScheduler creates a scheduler around the given refresh job.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		job:       cfg.Job,
		interval:  interval,
		timeout:   timeout,
		logger:    cfg.Logger,
	}
}

// Start schedules the periodic refresh and starts the scheduler in the
// background. The first run fires immediately.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.interval).StartImmediately().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		result := s.job.Run(ctx)
		if result.Failed > 0 {
			s.logger.Warn().
				Int("failed", result.Failed).
				Msg("scheduled refresh finished with failures")
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info().
		Dur("interval", s.interval).
		Msg("pipeline scheduler started")
	return nil
}

// Stop stops the scheduler and cancels any future runs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
