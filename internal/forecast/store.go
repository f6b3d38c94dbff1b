package forecast

import (
	"context"
	"sync"
	"time"
)

// State is the serializable form of a fitted model. The four fields are
// everything a model needs to be reconstructed after a restart.
type State struct {
	LastTimestamp  time.Time       `json:"last_timestamp"`
	BaseValue      float64         `json:"base_value"`
	TrendSlope     float64         `json:"trend_slope"`
	SeasonalByHour map[int]float64 `json:"seasonal_by_hour"`
}

// State returns the serializable state of a fitted model.
func (m *Model) State() State {
	seasonal := make(map[int]float64, len(m.SeasonalByHour))
	for hour, mean := range m.SeasonalByHour {
		seasonal[hour] = mean
	}
	return State{
		LastTimestamp:  m.LastTimestamp,
		BaseValue:      m.BaseValue,
		TrendSlope:     m.TrendSlope,
		SeasonalByHour: seasonal,
	}
}

// FromState reconstructs a fitted model from stored state.
func FromState(s State) *Model {
	seasonal := make(map[int]float64, len(s.SeasonalByHour))
	for hour, mean := range s.SeasonalByHour {
		seasonal[hour] = mean
	}
	return &Model{
		LastTimestamp:  s.LastTimestamp,
		BaseValue:      s.BaseValue,
		TrendSlope:     s.TrendSlope,
		SeasonalByHour: seasonal,
		fitted:         true,
	}
}

// ModelStore persists fitted models between runs.
type ModelStore interface {
	// Save stores the model for a city, replacing any previous one.
	Save(ctx context.Context, city string, model *Model) error

	// Load retrieves the model for a city.
	// Returns ErrNoModel when the city has no stored model.
	Load(ctx context.Context, city string) (*Model, error)

	// All retrieves every stored model keyed by city.
	All(ctx context.Context) (map[string]*Model, error)
}

// InMemoryModelStore is an in-memory implementation of ModelStore.
type InMemoryModelStore struct {
	mu     sync.RWMutex
	states map[string]State
}

// NewInMemoryModelStore creates a new empty in-memory model store.
func NewInMemoryModelStore() *InMemoryModelStore {
	return &InMemoryModelStore{states: make(map[string]State)}
}

// Save stores the model for a city.
func (s *InMemoryModelStore) Save(_ context.Context, city string, model *Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[city] = model.State()
	return nil
}

// Load retrieves the model for a city.
func (s *InMemoryModelStore) Load(_ context.Context, city string) (*Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[city]
	if !ok {
		return nil, ErrNoModel
	}
	return FromState(state), nil
}

// All retrieves every stored model keyed by city.
func (s *InMemoryModelStore) All(_ context.Context) (map[string]*Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	models := make(map[string]*Model, len(s.states))
	for city, state := range s.states {
		models[city] = FromState(state)
	}
	return models, nil
}
