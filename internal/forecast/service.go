package forecast

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// ServiceConfig holds configuration for the forecast query service.
type ServiceConfig struct {
	// Models is the store of fitted per-city models.
	Models ModelStore

	// Snapshots optionally caches rendered forecasts. When nil every
	// request predicts from the stored model.
	Snapshots SnapshotStore

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service serves forecasts from stored models, preferring cached
// snapshots when one matches the requested horizon.
type Service struct {
	models    ModelStore
	snapshots SnapshotStore
	logger    zerolog.Logger
}

// NewService creates a new forecast query service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		models:    cfg.Models,
		snapshots: cfg.Snapshots,
		logger:    cfg.Logger,
	}
}

// Forecast returns the annotated hourly forecast for a city.
// Returns ErrNoModel when the city has never been trained.
func (s *Service) Forecast(ctx context.Context, city string, days int) ([]Row, error) {
	if days <= 0 {
		days = DefaultForecastDays
	}

	if s.snapshots != nil {
		snapshot, err := s.snapshots.Get(ctx, city)
		if err == nil && snapshot.Days == days {
			return snapshot.Rows, nil
		}
		if err != nil && !errors.Is(err, ErrNoSnapshot) {
			s.logger.Warn().Err(err).Str("city", city).Msg("snapshot lookup failed, predicting from model")
		}
	}

	model, err := s.models.Load(ctx, city)
	if err != nil {
		return nil, err
	}

	rows, err := Forecast(model, days)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("city", city).
		Int("days", days).
		Int("rows", len(rows)).
		Msg("forecast computed from model")
	return rows, nil
}

// ModelCount returns the number of cities with a trained model.
func (s *Service) ModelCount(ctx context.Context) int {
	models, err := s.models.All(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to count models")
		return 0
	}
	return len(models)
}

// CachedForecast returns the cached snapshot rows for a city without
// touching the model store. Returns ErrNoSnapshot when nothing is cached
// or no snapshot store is configured.
func (s *Service) CachedForecast(ctx context.Context, city string) ([]Row, error) {
	if s.snapshots == nil {
		return nil, ErrNoSnapshot
	}
	snapshot, err := s.snapshots.Get(ctx, city)
	if err != nil {
		return nil, err
	}
	return snapshot.Rows, nil
}
