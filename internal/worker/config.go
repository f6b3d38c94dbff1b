// Package worker provides background job processing for the air
// quality pipeline: scheduled ingestion from OpenAQ, model retraining,
// and forecast snapshot refresh.
package worker

import (
	"sort"
	"time"

	"github.com/madeeharehan/pakistan-air-quality-project/internal/forecast"
)

// CityTarget represents a monitored city in the refresh schedule.
type CityTarget struct {
	// Name is the city name as stored in the cleaned dataset.
	Name string

	// Priority determines refresh order (lower = higher priority).
	Priority int
}

// RefreshConfig holds configuration for the pipeline refresh job.
type RefreshConfig struct {
	// Targets are the cities to refresh.
	// If empty, uses DefaultCityTargets.
	Targets []CityTarget

	// Concurrency is the number of cities trained concurrently.
	// Default: 3
	Concurrency int

	// Timeout is the timeout for each per-city stage.
	// Default: 30 seconds
	Timeout time.Duration

	// ForecastDays is the horizon for refreshed snapshots.
	// Default: forecast.DefaultForecastDays
	ForecastDays int

	// Ingest enables the OpenAQ fetch stage.
	// Default: true
	Ingest bool

	// Retrain enables the per-city retrain stage.
	// Default: true
	Retrain bool
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Targets:      DefaultCityTargets(),
		Concurrency:  3,
		Timeout:      30 * time.Second,
		ForecastDays: forecast.DefaultForecastDays,
		Ingest:       true,
		Retrain:      true,
	}
}

// DefaultCityTargets returns the monitored Pakistani cities, ordered
// by population. Priority 1 cities are refreshed first.
func DefaultCityTargets() []CityTarget {
	return []CityTarget{
		{Name: "Karachi", Priority: 1},
		{Name: "Lahore", Priority: 1},
		{Name: "Islamabad", Priority: 1},
		{Name: "Faisalabad", Priority: 2},
		{Name: "Peshawar", Priority: 2},
	}
}

// CityNames returns the configured city names in priority order.
func (c RefreshConfig) CityNames() []string {
	targets := make([]CityTarget, len(c.Targets))
	copy(targets, c.Targets)
	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].Priority < targets[j].Priority
	})

	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.Name
	}
	return names
}

// TotalCities returns the number of configured cities.
func (c RefreshConfig) TotalCities() int {
	return len(c.Targets)
}
