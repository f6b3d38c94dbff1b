package dataset

import (
	"context"
	"time"
)

// Repository defines the interface for cleaned reading persistence.
type Repository interface {
	// InsertReadings stores a batch of cleaned readings.
	// Re-inserting an existing (city, timestamp) pair overwrites it.
	InsertReadings(ctx context.Context, readings []Reading) error

	// All retrieves the full cleaned dataset ordered by timestamp.
	All(ctx context.Context) ([]Reading, error)

	// ListByCity retrieves readings for one city at or after since,
	// ordered by timestamp, keeping at most limit of the most recent rows.
	// Returns ErrCityNotFound if the city has no readings.
	ListByCity(ctx context.Context, city string, since time.Time, limit int) ([]Reading, error)

	// Latest retrieves the most recent reading for a city.
	// Returns ErrCityNotFound if the city has no readings.
	Latest(ctx context.Context, city string) (*Reading, error)

	// Cities retrieves the distinct city names, sorted.
	Cities(ctx context.Context) ([]string, error)
}
