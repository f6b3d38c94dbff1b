package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresModelStore is a PostgreSQL implementation of ModelStore.
// Model state is stored as a JSON document per city.
type PostgresModelStore struct {
	pool *pgxpool.Pool
}

// NewPostgresModelStore creates a new PostgreSQL model store.
func NewPostgresModelStore(pool *pgxpool.Pool) *PostgresModelStore {
	return &PostgresModelStore{pool: pool}
}

// Save stores the model for a city, replacing any previous one.
func (s *PostgresModelStore) Save(ctx context.Context, city string, model *Model) error {
	payload, err := json.Marshal(model.State())
	if err != nil {
		return fmt.Errorf("marshal model state: %w", err)
	}

	query := `
		INSERT INTO models (city, state, trained_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (city) DO UPDATE
		SET state = EXCLUDED.state,
		    trained_at = EXCLUDED.trained_at
	`
	_, err = s.pool.Exec(ctx, query, city, payload, time.Now().UTC())
	return err
}

// Load retrieves the model for a city.
func (s *PostgresModelStore) Load(ctx context.Context, city string) (*Model, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT state FROM models WHERE city = $1`, city).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoModel
		}
		return nil, err
	}

	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("unmarshal model state: %w", err)
	}
	return FromState(state), nil
}

// All retrieves every stored model keyed by city.
func (s *PostgresModelStore) All(ctx context.Context) (map[string]*Model, error) {
	rows, err := s.pool.Query(ctx, `SELECT city, state FROM models`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	models := make(map[string]*Model)
	for rows.Next() {
		var city string
		var payload []byte
		if err := rows.Scan(&city, &payload); err != nil {
			return nil, err
		}

		var state State
		if err := json.Unmarshal(payload, &state); err != nil {
			return nil, fmt.Errorf("unmarshal model state for %s: %w", city, err)
		}
		models[city] = FromState(state)
	}
	return models, rows.Err()
}
