package dataset

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// It backs the CSV-file deployment mode and tests.
type InMemoryRepository struct {
	mu       sync.RWMutex
	readings map[string]map[int64]Reading // city -> unix nano -> reading
}

// NewInMemoryRepository creates a new empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		readings: make(map[string]map[int64]Reading),
	}
}

// NewInMemoryRepositoryWithReadings creates an in-memory repository
// pre-loaded with the given readings.
func NewInMemoryRepositoryWithReadings(readings []Reading) *InMemoryRepository {
	repo := NewInMemoryRepository()
	_ = repo.InsertReadings(context.Background(), readings)
	return repo
}

// InsertReadings stores a batch of cleaned readings.
func (r *InMemoryRepository) InsertReadings(_ context.Context, readings []Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, reading := range readings {
		byTime, ok := r.readings[reading.City]
		if !ok {
			byTime = make(map[int64]Reading)
			r.readings[reading.City] = byTime
		}
		byTime[reading.Timestamp.UnixNano()] = reading
	}
	return nil
}

// All retrieves the full dataset ordered by timestamp.
func (r *InMemoryRepository) All(_ context.Context) ([]Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Reading
	for _, byTime := range r.readings {
		for _, reading := range byTime {
			out = append(out, reading)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// ListByCity retrieves readings for one city at or after since.
func (r *InMemoryRepository) ListByCity(_ context.Context, city string, since time.Time, limit int) ([]Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byTime, ok := r.readings[city]
	if !ok {
		return nil, ErrCityNotFound
	}

	out := make([]Reading, 0, len(byTime))
	for _, reading := range byTime {
		if reading.Timestamp.Before(since) {
			continue
		}
		out = append(out, reading)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// Latest retrieves the most recent reading for a city.
func (r *InMemoryRepository) Latest(_ context.Context, city string) (*Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byTime, ok := r.readings[city]
	if !ok || len(byTime) == 0 {
		return nil, ErrCityNotFound
	}

	var latest Reading
	first := true
	for _, reading := range byTime {
		if first || reading.Timestamp.After(latest.Timestamp) {
			latest = reading
			first = false
		}
	}
	return &latest, nil
}

// Cities retrieves the distinct city names, sorted.
func (r *InMemoryRepository) Cities(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cities := make([]string, 0, len(r.readings))
	for city := range r.readings {
		cities = append(cities, city)
	}
	sort.Strings(cities)
	return cities, nil
}
