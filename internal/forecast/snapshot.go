package forecast

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNoSnapshot is returned when a city has no cached forecast.
var ErrNoSnapshot = errors.New("no forecast snapshot for city")

// Snapshot is the latest rendered forecast for a city, cached so the API
// can serve repeat requests without re-running the model.
type Snapshot struct {
	City        string    `json:"city"`
	Days        int       `json:"days"`
	GeneratedAt time.Time `json:"generated_at"`
	Rows        []Row     `json:"rows"`
}

// SnapshotStore caches the latest forecast per city.
type SnapshotStore interface {
	// Put stores a snapshot, replacing any previous one for the city.
	Put(ctx context.Context, snapshot Snapshot) error

	// Get retrieves the cached snapshot for a city.
	// Returns ErrNoSnapshot when no snapshot is cached.
	Get(ctx context.Context, city string) (Snapshot, error)
}

// InMemorySnapshotStore is an in-memory implementation of SnapshotStore.
// Safe for concurrent use.
type InMemorySnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
	ttl       time.Duration
}

// NewInMemorySnapshotStore creates a snapshot store with the given TTL.
// A zero TTL disables expiry.
func NewInMemorySnapshotStore(ttl time.Duration) *InMemorySnapshotStore {
	return &InMemorySnapshotStore{
		snapshots: make(map[string]Snapshot),
		ttl:       ttl,
	}
}

// Put stores a snapshot.
func (s *InMemorySnapshotStore) Put(_ context.Context, snapshot Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.City] = snapshot
	return nil
}

// Get retrieves the cached snapshot for a city.
func (s *InMemorySnapshotStore) Get(_ context.Context, city string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.snapshots[city]
	if !ok {
		return Snapshot{}, ErrNoSnapshot
	}
	if s.ttl > 0 && time.Since(snapshot.GeneratedAt) > s.ttl {
		return Snapshot{}, ErrNoSnapshot
	}
	return snapshot, nil
}
