package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/madeeharehan/pakistan-air-quality-project/internal/dataset"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/featureflags"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/forecast"
)

// Fetcher retrieves raw PM2.5 readings from an upstream source.
type Fetcher interface {
	FetchReadings(ctx context.Context) ([]dataset.Reading, error)
}

// RefreshJob runs the pipeline: fetch readings from the upstream
// source, persist them, retrain the per-city models, and refresh the
// cached forecast snapshots.
type RefreshJob struct {
	config RefreshConfig
	logger zerolog.Logger

	fetcher    Fetcher
	repository dataset.Repository
	trainer    *forecast.Trainer
	models     forecast.ModelStore
	snapshots  forecast.SnapshotStore
	flags      *featureflags.Service

	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRuns        int64
	ReadingsIngested int64
	CitiesTrained    int64
	CitiesSkipped    int64
	CitiesFailed     int64
	SnapshotsWritten int64

	// Timings
	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config RefreshConfig
	Logger zerolog.Logger

	// Fetcher is optional; nil disables the ingest stage (for
	// deployments that load readings from a static dataset).
	Fetcher Fetcher

	// Repository stores cleaned readings. Required.
	Repository dataset.Repository

	// Trainer fits the per-city models. If nil a default trainer is
	// created with the job's logger.
	Trainer *forecast.Trainer

	// Models receives the fitted models. Required when Retrain is on.
	Models forecast.ModelStore

	// Snapshots is optional; when set, a fresh forecast snapshot is
	// written per trained city.
	Snapshots forecast.SnapshotStore

	// Flags is optional; when set, the disable_ingest and
	// disable_retrain flags override the static config.
	Flags *featureflags.Service
}

// NewRefreshJob creates a new pipeline refresh job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	config := cfg.Config
	if len(config.Targets) == 0 {
		config.Targets = DefaultCityTargets()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.ForecastDays <= 0 {
		config.ForecastDays = forecast.DefaultForecastDays
	}

	trainer := cfg.Trainer
	if trainer == nil {
		trainer = forecast.NewTrainer(forecast.TrainerConfig{Logger: cfg.Logger})
	}

	return &RefreshJob{
		config:     config,
		logger:     cfg.Logger,
		fetcher:    cfg.Fetcher,
		repository: cfg.Repository,
		trainer:    trainer,
		models:     cfg.Models,
		snapshots:  cfg.Snapshots,
		flags:      cfg.Flags,
		metrics:    &RefreshMetrics{},
	}
}

// RefreshResult contains the result of one pipeline run.
type RefreshResult struct {
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
	TotalCities      int
	ReadingsIngested int
	Trained          int
	Skipped          int
	Failed           int
	Errors           []RefreshError
}

// RefreshError represents an error during refresh.
type RefreshError struct {
	Stage string
	City  string
	Error string
}

// Run executes the full pipeline for all configured cities.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	return j.RunCities(ctx, nil)
}

// RunCities executes the pipeline for a subset of the configured
// cities. An empty subset means all of them.
func (j *RefreshJob) RunCities(ctx context.Context, cities []string) *RefreshResult {
	startTime := time.Now()
	if len(cities) == 0 {
		cities = j.config.CityNames()
	}

	result := &RefreshResult{
		StartTime:   startTime,
		TotalCities: len(cities),
	}

	j.logger.Info().
		Int("cities", len(cities)).
		Int("concurrency", j.config.Concurrency).
		Msg("starting pipeline refresh job")

	j.runIngest(ctx, result)
	j.runRetrain(ctx, cities, result)

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("ingested", result.ReadingsIngested).
		Int("trained", result.Trained).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("pipeline refresh job completed")

	return result
}

func (j *RefreshJob) runIngest(ctx context.Context, result *RefreshResult) {
	if !j.config.Ingest || j.fetcher == nil {
		return
	}
	if j.flags != nil && j.flags.IsIngestDisabled(ctx) {
		j.logger.Warn().Msg("ingest disabled by feature flag")
		return
	}

	readings, err := j.fetcher.FetchReadings(ctx)
	if err != nil {
		result.Errors = append(result.Errors, RefreshError{
			Stage: "fetch",
			Error: err.Error(),
		})
		j.logger.Error().Err(err).Msg("upstream fetch failed")
		return
	}

	if err := j.repository.InsertReadings(ctx, readings); err != nil {
		result.Errors = append(result.Errors, RefreshError{
			Stage: "store",
			Error: err.Error(),
		})
		j.logger.Error().Err(err).Msg("failed to store readings")
		return
	}

	result.ReadingsIngested = len(readings)
	atomic.AddInt64(&j.metrics.ReadingsIngested, int64(len(readings)))
}

func (j *RefreshJob) runRetrain(ctx context.Context, cities []string, result *RefreshResult) {
	if !j.config.Retrain || j.models == nil {
		return
	}
	if j.flags != nil && j.flags.IsRetrainDisabled(ctx) {
		j.logger.Warn().Msg("retrain disabled by feature flag")
		return
	}

	// Create work channels
	citiesChan := make(chan string, len(cities))
	resultsChan := make(chan cityResult, len(cities))

	// Start workers
	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.retrainWorker(ctx, citiesChan, resultsChan)
		}()
	}

	// Send cities to workers
	for _, city := range cities {
		citiesChan <- city
	}
	close(citiesChan)

	// Wait for workers to complete
	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	// Collect results
	for cr := range resultsChan {
		switch {
		case cr.trained:
			result.Trained++
		case cr.skipped:
			result.Skipped++
		default:
			result.Failed++
		}
		result.Errors = append(result.Errors, cr.errors...)
	}
}

type cityResult struct {
	city    string
	trained bool
	skipped bool
	errors  []RefreshError
}

func (j *RefreshJob) retrainWorker(ctx context.Context, cities <-chan string, results chan<- cityResult) {
	for city := range cities {
		select {
		case <-ctx.Done():
			return
		default:
			results <- j.retrainCity(ctx, city)
		}
	}
}

func (j *RefreshJob) retrainCity(ctx context.Context, city string) cityResult {
	result := cityResult{city: city}

	// Create timeout context for this city
	cityCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	readings, err := j.repository.ListByCity(cityCtx, city, time.Time{}, 0)
	if err != nil {
		// A city with no readings yet is a skip, not a failure; anything
		// else (an unreachable store, a timeout) is.
		if errors.Is(err, dataset.ErrCityNotFound) {
			result.skipped = true
			atomic.AddInt64(&j.metrics.CitiesSkipped, 1)
			j.logger.Warn().Err(err).Str("city", city).Msg("no readings to train on")
			return result
		}
		result.errors = append(result.errors, RefreshError{
			Stage: "load",
			City:  city,
			Error: err.Error(),
		})
		j.logger.Error().Err(err).Str("city", city).Msg("failed to load readings")
		return result
	}

	models := j.trainer.TrainAll(cityCtx, readings)
	model, ok := models[city]
	if !ok {
		result.skipped = true
		atomic.AddInt64(&j.metrics.CitiesSkipped, 1)
		return result
	}

	if err := j.models.Save(cityCtx, city, model); err != nil {
		result.errors = append(result.errors, RefreshError{
			Stage: "save-model",
			City:  city,
			Error: err.Error(),
		})
		return result
	}

	result.trained = true
	atomic.AddInt64(&j.metrics.CitiesTrained, 1)

	if err := j.refreshSnapshot(cityCtx, city, model); err != nil {
		// Snapshot failures are non-fatal; the API falls back to the model.
		result.errors = append(result.errors, RefreshError{
			Stage: "snapshot",
			City:  city,
			Error: err.Error(),
		})
		j.logger.Warn().Err(err).Str("city", city).Msg("snapshot refresh failed")
	}

	return result
}

func (j *RefreshJob) refreshSnapshot(ctx context.Context, city string, model *forecast.Model) error {
	if j.snapshots == nil {
		return nil
	}

	rows, err := forecast.Forecast(model, j.config.ForecastDays)
	if err != nil {
		return fmt.Errorf("rendering forecast: %w", err)
	}

	snapshot := forecast.Snapshot{
		City:        city,
		Days:        j.config.ForecastDays,
		GeneratedAt: time.Now().UTC(),
		Rows:        rows,
	}
	if err := j.snapshots.Put(ctx, snapshot); err != nil {
		return fmt.Errorf("storing snapshot: %w", err)
	}

	atomic.AddInt64(&j.metrics.SnapshotsWritten, 1)
	return nil
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.CitiesFailed += int64(result.Failed)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRuns:        j.metrics.TotalRuns,
		ReadingsIngested: atomic.LoadInt64(&j.metrics.ReadingsIngested),
		CitiesTrained:    atomic.LoadInt64(&j.metrics.CitiesTrained),
		CitiesSkipped:    atomic.LoadInt64(&j.metrics.CitiesSkipped),
		CitiesFailed:     j.metrics.CitiesFailed,
		SnapshotsWritten: atomic.LoadInt64(&j.metrics.SnapshotsWritten),
		LastRunAt:        j.metrics.LastRunAt,
		LastRunDuration:  j.metrics.LastRunDuration,
		TotalDuration:    j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":        m.TotalRuns,
		"readings_ingested": m.ReadingsIngested,
		"cities_trained":    m.CitiesTrained,
		"cities_skipped":    m.CitiesSkipped,
		"cities_failed":     m.CitiesFailed,
		"snapshots_written": m.SnapshotsWritten,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"total_duration":    m.TotalDuration.String(),
	}
}
