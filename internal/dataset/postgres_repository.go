package dataset

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL reading repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// InsertReadings stores a batch of cleaned readings, overwriting any
// existing (city, timestamp) pair.
func (r *PostgresRepository) InsertReadings(ctx context.Context, readings []Reading) error {
	if len(readings) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO readings (city, ts, pm25, aqi_value, aqi_category)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (city, ts) DO UPDATE
		SET pm25 = EXCLUDED.pm25,
		    aqi_value = EXCLUDED.aqi_value,
		    aqi_category = EXCLUDED.aqi_category
	`
	for _, reading := range readings {
		batch.Queue(query,
			reading.City,
			reading.Timestamp,
			reading.PM25,
			reading.AQIValue,
			nullableString(reading.AQICategory),
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range readings {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// All retrieves the full dataset ordered by timestamp.
func (r *PostgresRepository) All(ctx context.Context) ([]Reading, error) {
	query := `
		SELECT city, ts, pm25, aqi_value, aqi_category
		FROM readings
		ORDER BY ts
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReadings(rows)
}

// ListByCity retrieves readings for one city at or after since.
func (r *PostgresRepository) ListByCity(ctx context.Context, city string, since time.Time, limit int) ([]Reading, error) {
	// limit <= 0 means no cap; LIMIT NULL reads as LIMIT ALL.
	var rowCap *int
	if limit > 0 {
		rowCap = &limit
	}

	// Innermost query takes the newest rows; outer query restores
	// chronological order.
	query := `
		SELECT city, ts, pm25, aqi_value, aqi_category
		FROM (
			SELECT city, ts, pm25, aqi_value, aqi_category
			FROM readings
			WHERE city = $1 AND ts >= $2
			ORDER BY ts DESC
			LIMIT $3
		) recent
		ORDER BY ts
	`
	rows, err := r.pool.Query(ctx, query, city, since, rowCap)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	readings, err := scanReadings(rows)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, ErrCityNotFound
	}
	return readings, nil
}

// Latest retrieves the most recent reading for a city.
func (r *PostgresRepository) Latest(ctx context.Context, city string) (*Reading, error) {
	query := `
		SELECT city, ts, pm25, aqi_value, aqi_category
		FROM readings
		WHERE city = $1
		ORDER BY ts DESC
		LIMIT 1
	`

	var reading Reading
	var category *string
	err := r.pool.QueryRow(ctx, query, city).Scan(
		&reading.City,
		&reading.Timestamp,
		&reading.PM25,
		&reading.AQIValue,
		&category,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCityNotFound
		}
		return nil, err
	}
	if category != nil {
		reading.AQICategory = *category
	}
	return &reading, nil
}

// Cities retrieves the distinct city names, sorted.
func (r *PostgresRepository) Cities(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT city FROM readings ORDER BY city`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cities []string
	for rows.Next() {
		var city string
		if err := rows.Scan(&city); err != nil {
			return nil, err
		}
		cities = append(cities, city)
	}
	return cities, rows.Err()
}

func scanReadings(rows pgx.Rows) ([]Reading, error) {
	var readings []Reading
	for rows.Next() {
		var reading Reading
		var category *string
		err := rows.Scan(
			&reading.City,
			&reading.Timestamp,
			&reading.PM25,
			&reading.AQIValue,
			&category,
		)
		if err != nil {
			return nil, err
		}
		if category != nil {
			reading.AQICategory = *category
		}
		readings = append(readings, reading)
	}
	return readings, rows.Err()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
