package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madeeharehan/pakistan-air-quality-project/internal/dataset"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/featureflags"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/forecast"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/worker"
)

type stubFetcher struct {
	readings []dataset.Reading
	err      error
	calls    int
}

func (f *stubFetcher) FetchReadings(_ context.Context) ([]dataset.Reading, error) {
	f.calls++
	return f.readings, f.err
}

func hourlyReadings(city string, n int, base float64) []dataset.Reading {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	readings := make([]dataset.Reading, n)
	for i := range readings {
		readings[i] = dataset.Reading{
			City:      city,
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			PM25:      base + float64(i%24),
		}
	}
	return readings
}

func TestDefaultRefreshConfig(t *testing.T) {
	cfg := worker.DefaultRefreshConfig()

	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, forecast.DefaultForecastDays, cfg.ForecastDays)
	assert.True(t, cfg.Ingest)
	assert.True(t, cfg.Retrain)
	assert.NotEmpty(t, cfg.Targets)
}

func TestDefaultCityTargets(t *testing.T) {
	targets := worker.DefaultCityTargets()

	assert.GreaterOrEqual(t, len(targets), 5)

	var lahore *worker.CityTarget
	for i := range targets {
		if targets[i].Name == "Lahore" {
			lahore = &targets[i]
			break
		}
	}
	require.NotNil(t, lahore, "Lahore should be in targets")
	assert.Equal(t, 1, lahore.Priority)
}

func TestRefreshConfig_CityNames(t *testing.T) {
	cfg := worker.RefreshConfig{
		Targets: []worker.CityTarget{
			{Name: "Peshawar", Priority: 2},
			{Name: "Karachi", Priority: 1},
			{Name: "Lahore", Priority: 1},
		},
	}

	names := cfg.CityNames()
	assert.Equal(t, []string{"Karachi", "Lahore", "Peshawar"}, names)
	assert.Equal(t, 3, cfg.TotalCities())
}

func TestRefreshJob_Run_FullPipeline(t *testing.T) {
	fetcher := &stubFetcher{
		readings: append(
			hourlyReadings("Lahore", 100, 120),
			hourlyReadings("Karachi", 100, 60)...,
		),
	}
	repo := dataset.NewInMemoryRepository()
	models := forecast.NewInMemoryModelStore()
	snapshots := forecast.NewInMemorySnapshotStore(0)

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			Targets: []worker.CityTarget{
				{Name: "Lahore", Priority: 1},
				{Name: "Karachi", Priority: 1},
			},
			Concurrency:  2,
			Timeout:      10 * time.Second,
			ForecastDays: 3,
			Ingest:       true,
			Retrain:      true,
		},
		Logger:     zerolog.Nop(),
		Fetcher:    fetcher,
		Repository: repo,
		Models:     models,
		Snapshots:  snapshots,
	})

	result := job.Run(context.Background())

	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, 200, result.ReadingsIngested)
	assert.Equal(t, 2, result.Trained)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 0, result.Failed)
	assert.Empty(t, result.Errors)

	// Both cities got a persisted model.
	all, err := models.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// And a rendered snapshot at the configured horizon.
	snap, err := snapshots.Get(context.Background(), "Lahore")
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Days)
	assert.Len(t, snap.Rows, 3*24)
	assert.False(t, snap.GeneratedAt.IsZero())
}

// brokenRepository simulates a reading store outage.
type brokenRepository struct {
	dataset.Repository
}

func (brokenRepository) ListByCity(context.Context, string, time.Time, int) ([]dataset.Reading, error) {
	return nil, errors.New("connection refused")
}

func TestNewRefreshJob_DefaultsOnlyMissingFields(t *testing.T) {
	repo := dataset.NewInMemoryRepositoryWithReadings(hourlyReadings("Lahore", 100, 120))
	models := forecast.NewInMemoryModelStore()

	// Empty targets get the defaults, but an explicit Retrain: false
	// must survive.
	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:     worker.RefreshConfig{Retrain: false},
		Logger:     zerolog.Nop(),
		Repository: repo,
		Models:     models,
	})

	result := job.Run(context.Background())

	assert.Equal(t, len(worker.DefaultCityTargets()), result.TotalCities)
	assert.Equal(t, 0, result.Trained)

	all, err := models.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRefreshJob_Run_RepositoryOutageIsFailure(t *testing.T) {
	models := forecast.NewInMemoryModelStore()

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			Targets:     []worker.CityTarget{{Name: "Lahore", Priority: 1}},
			Concurrency: 1,
			Retrain:     true,
		},
		Logger:     zerolog.Nop(),
		Repository: brokenRepository{},
		Models:     models,
	})

	result := job.Run(context.Background())

	assert.Equal(t, 0, result.Trained)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "load", result.Errors[0].Stage)
	assert.Equal(t, "Lahore", result.Errors[0].City)
}

func TestRefreshJob_Run_FetchFailure(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("upstream down")}
	repo := dataset.NewInMemoryRepositoryWithReadings(hourlyReadings("Lahore", 100, 120))
	models := forecast.NewInMemoryModelStore()

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			Targets:     []worker.CityTarget{{Name: "Lahore", Priority: 1}},
			Concurrency: 1,
			Ingest:      true,
			Retrain:     true,
		},
		Logger:     zerolog.Nop(),
		Fetcher:    fetcher,
		Repository: repo,
		Models:     models,
	})

	result := job.Run(context.Background())

	// Fetch failure is recorded but training continues on stored data.
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "fetch", result.Errors[0].Stage)
	assert.Equal(t, 0, result.ReadingsIngested)
	assert.Equal(t, 1, result.Trained)
}

func TestRefreshJob_Run_SkipsCityWithTooFewReadings(t *testing.T) {
	repo := dataset.NewInMemoryRepositoryWithReadings(append(
		hourlyReadings("Lahore", 100, 120),
		hourlyReadings("Hunza", 10, 15)...,
	))
	models := forecast.NewInMemoryModelStore()

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			Targets: []worker.CityTarget{
				{Name: "Lahore", Priority: 1},
				{Name: "Hunza", Priority: 2},
			},
			Concurrency: 1,
			Retrain:     true,
		},
		Logger:     zerolog.Nop(),
		Repository: repo,
		Models:     models,
	})

	result := job.Run(context.Background())

	assert.Equal(t, 1, result.Trained)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Failed)

	_, err := models.Load(context.Background(), "Hunza")
	assert.ErrorIs(t, err, forecast.ErrNoModel)
}

func TestRefreshJob_Run_UnknownCitySkipped(t *testing.T) {
	repo := dataset.NewInMemoryRepositoryWithReadings(hourlyReadings("Lahore", 100, 120))
	models := forecast.NewInMemoryModelStore()

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			Targets: []worker.CityTarget{
				{Name: "Lahore", Priority: 1},
				{Name: "Gilgit", Priority: 2},
			},
			Concurrency: 2,
			Retrain:     true,
		},
		Logger:     zerolog.Nop(),
		Repository: repo,
		Models:     models,
	})

	result := job.Run(context.Background())

	assert.Equal(t, 1, result.Trained)
	assert.Equal(t, 1, result.Skipped)
}

func TestRefreshJob_Run_IngestDisabledByFlag(t *testing.T) {
	fetcher := &stubFetcher{readings: hourlyReadings("Lahore", 100, 120)}
	repo := dataset.NewInMemoryRepository()
	flags := featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewInMemoryRepositoryWithFlags(map[string]*featureflags.Flag{
			featureflags.FlagDisableIngest: {Key: featureflags.FlagDisableIngest, Value: true},
		}),
		Logger: zerolog.Nop(),
	})

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			Targets:     []worker.CityTarget{{Name: "Lahore", Priority: 1}},
			Concurrency: 1,
			Ingest:      true,
			Retrain:     false,
		},
		Logger:     zerolog.Nop(),
		Fetcher:    fetcher,
		Repository: repo,
		Flags:      flags,
	})

	result := job.Run(context.Background())

	assert.Equal(t, 0, fetcher.calls)
	assert.Equal(t, 0, result.ReadingsIngested)
}

func TestRefreshJob_Run_RetrainDisabledByFlag(t *testing.T) {
	repo := dataset.NewInMemoryRepositoryWithReadings(hourlyReadings("Lahore", 100, 120))
	models := forecast.NewInMemoryModelStore()
	flags := featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewInMemoryRepositoryWithFlags(map[string]*featureflags.Flag{
			featureflags.FlagDisableRetrain: {Key: featureflags.FlagDisableRetrain, Value: true},
		}),
		Logger: zerolog.Nop(),
	})

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			Targets:     []worker.CityTarget{{Name: "Lahore", Priority: 1}},
			Concurrency: 1,
			Retrain:     true,
		},
		Logger:     zerolog.Nop(),
		Repository: repo,
		Models:     models,
		Flags:      flags,
	})

	result := job.Run(context.Background())

	assert.Equal(t, 0, result.Trained)
	all, err := models.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRefreshJob_RunCities_Subset(t *testing.T) {
	repo := dataset.NewInMemoryRepositoryWithReadings(append(
		hourlyReadings("Lahore", 100, 120),
		hourlyReadings("Karachi", 100, 60)...,
	))
	models := forecast.NewInMemoryModelStore()

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			Targets: []worker.CityTarget{
				{Name: "Lahore", Priority: 1},
				{Name: "Karachi", Priority: 1},
			},
			Concurrency: 2,
			Retrain:     true,
		},
		Logger:     zerolog.Nop(),
		Repository: repo,
		Models:     models,
	})

	result := job.RunCities(context.Background(), []string{"Karachi"})

	assert.Equal(t, 1, result.TotalCities)
	assert.Equal(t, 1, result.Trained)

	_, err := models.Load(context.Background(), "Lahore")
	assert.ErrorIs(t, err, forecast.ErrNoModel)
}

func TestRefreshJob_Metrics(t *testing.T) {
	repo := dataset.NewInMemoryRepositoryWithReadings(hourlyReadings("Lahore", 100, 120))
	models := forecast.NewInMemoryModelStore()
	snapshots := forecast.NewInMemorySnapshotStore(0)

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			Targets:     []worker.CityTarget{{Name: "Lahore", Priority: 1}},
			Concurrency: 1,
			Retrain:     true,
		},
		Logger:     zerolog.Nop(),
		Repository: repo,
		Models:     models,
		Snapshots:  snapshots,
	})

	job.Run(context.Background())
	job.Run(context.Background())

	m := job.GetMetrics()
	assert.Equal(t, int64(2), m.TotalRuns)
	assert.Equal(t, int64(2), m.CitiesTrained)
	assert.Equal(t, int64(2), m.SnapshotsWritten)
	assert.False(t, m.LastRunAt.IsZero())

	snap := job.MetricsSnapshot()
	assert.Equal(t, int64(2), snap["total_runs"])
}

func TestInlineRetrainer_ReturnsJobID(t *testing.T) {
	repo := dataset.NewInMemoryRepositoryWithReadings(hourlyReadings("Lahore", 100, 120))
	models := forecast.NewInMemoryModelStore()

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			Targets:     []worker.CityTarget{{Name: "Lahore", Priority: 1}},
			Concurrency: 1,
			Retrain:     true,
		},
		Logger:     zerolog.Nop(),
		Repository: repo,
		Models:     models,
	})

	retrainer := worker.NewInlineRetrainer(job, time.Minute, zerolog.Nop())

	jobID, err := retrainer.RequestRetrain(context.Background(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)
	assert.Contains(t, jobID, "job_")

	// The model lands asynchronously.
	require.Eventually(t, func() bool {
		_, err := models.Load(context.Background(), "Lahore")
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
}
