package dataset

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/madeeharehan/pakistan-air-quality-project/internal/aqi"
)

// CityStats summarizes the historical readings for a city.
type CityStats struct {
	City                 string
	AvgAQI               float64
	MaxAQI               float64
	MinAQI               float64
	AvgPM25              float64
	MaxPM25              float64
	MinPM25              float64
	TotalReadings        int
	CategoryDistribution map[string]int
}

// ServiceConfig holds configuration for the dataset query service.
type ServiceConfig struct {
	// Repository is the reading store.
	Repository Repository

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service answers history, stats and current-reading queries over the
// cleaned dataset.
type Service struct {
	repo   Repository
	logger zerolog.Logger
}

// NewService creates a new dataset query service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}
}

// Cities returns the sorted list of cities with data.
func (s *Service) Cities(ctx context.Context) ([]string, error) {
	return s.repo.Cities(ctx)
}

// Current returns the latest labeled reading for a city.
func (s *Service) Current(ctx context.Context, city string) (*Reading, error) {
	reading, err := s.repo.Latest(ctx, city)
	if err != nil {
		return nil, err
	}
	labeled := Label(*reading)
	return &labeled, nil
}

// AllCurrent returns the latest labeled reading for every city.
// Cities whose lookup fails are skipped; one bad city must not take down
// the whole response.
func (s *Service) AllCurrent(ctx context.Context) ([]Reading, error) {
	cities, err := s.repo.Cities(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Reading, 0, len(cities))
	for _, city := range cities {
		reading, err := s.repo.Latest(ctx, city)
		if err != nil {
			s.logger.Warn().Err(err).Str("city", city).Msg("skipping city in all-current")
			continue
		}
		out = append(out, Label(*reading))
	}
	return out, nil
}

// History returns labeled readings for a city within the trailing window
// of the given number of hours, capped at limit rows (most recent kept).
func (s *Service) History(ctx context.Context, city string, hours, limit int) ([]Reading, error) {
	if hours <= 0 {
		hours = 168
	}
	if limit <= 0 {
		limit = 1000
	}

	latest, err := s.repo.Latest(ctx, city)
	if err != nil {
		return nil, err
	}

	since := latest.Timestamp.Add(-time.Duration(hours) * time.Hour)
	readings, err := s.repo.ListByCity(ctx, city, since, limit)
	if err != nil {
		return nil, err
	}

	for i := range readings {
		readings[i] = Label(readings[i])
	}
	return readings, nil
}

// Stats returns summary statistics for a city across its full history.
func (s *Service) Stats(ctx context.Context, city string) (*CityStats, error) {
	readings, err := s.repo.ListByCity(ctx, city, time.Time{}, 0)
	if err != nil {
		return nil, err
	}

	stats := &CityStats{
		City:                 city,
		CategoryDistribution: make(map[string]int),
	}

	var sumAQI, sumPM25 float64
	aqiCount := 0
	for i, raw := range readings {
		r := Label(raw)

		if i == 0 {
			stats.MinPM25 = r.PM25
			stats.MaxPM25 = r.PM25
		}
		if r.PM25 < stats.MinPM25 {
			stats.MinPM25 = r.PM25
		}
		if r.PM25 > stats.MaxPM25 {
			stats.MaxPM25 = r.PM25
		}
		sumPM25 += r.PM25

		if r.AQIValue != nil {
			v := *r.AQIValue
			if aqiCount == 0 {
				stats.MinAQI = v
				stats.MaxAQI = v
			}
			if v < stats.MinAQI {
				stats.MinAQI = v
			}
			if v > stats.MaxAQI {
				stats.MaxAQI = v
			}
			sumAQI += v
			aqiCount++
		}

		stats.CategoryDistribution[r.AQICategory]++
	}

	stats.TotalReadings = len(readings)
	if len(readings) > 0 {
		stats.AvgPM25 = sumPM25 / float64(len(readings))
	}
	if aqiCount > 0 {
		stats.AvgAQI = sumAQI / float64(aqiCount)
	}
	return stats, nil
}

// Label fills in the AQI value and category for a reading when the
// cleaning pipeline has not already done so.
func Label(r Reading) Reading {
	if r.AQIValue == nil {
		if v, ok := aqi.Value(r.PM25); ok {
			f := float64(v)
			r.AQIValue = &f
		}
	}
	if r.AQICategory == "" {
		r.AQICategory = string(aqi.CategoryFor(r.PM25))
	}
	return r
}

// LabelAll labels every reading in place and returns the slice.
func LabelAll(readings []Reading) []Reading {
	for i := range readings {
		readings[i] = Label(readings[i])
	}
	return readings
}
