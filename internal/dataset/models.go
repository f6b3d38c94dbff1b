// Package dataset provides the cleaned PM2.5 reading model, series
// preparation, and reading persistence.
package dataset

import (
	"errors"
	"time"
)

// Dataset errors.
var (
	ErrCityNotFound = errors.New("city not found in dataset")
	ErrNoData       = errors.New("dataset contains no readings")
)

// Reading is a single cleaned PM2.5 observation for a city.
// Readings are immutable once cleaned; the engine consumes them read-only.
type Reading struct {
	City      string
	Timestamp time.Time
	PM25      float64

	// AQIValue is the pre-computed AQI score for this reading, when the
	// labeling step has run. Nil for unlabeled readings.
	AQIValue *float64

	// AQICategory is the pre-computed health category label, when present.
	AQICategory string
}

// Point is one (timestamp, value) observation in a prepared series.
type Point struct {
	Timestamp time.Time
	Value     float64
}

// Series is a per-city time series: strictly ascending timestamps,
// duplicates already collapsed by averaging.
type Series []Point

// Last returns the chronologically last point.
// The series must be non-empty.
func (s Series) Last() Point {
	return s[len(s)-1]
}

// Values returns the observation values in chronological order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}
