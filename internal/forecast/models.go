package forecast

import (
	"errors"
	"time"

	"github.com/madeeharehan/pakistan-air-quality-project/internal/aqi"
)

// Orchestration errors.
var (
	// ErrInsufficientData marks a city whose series is shorter than the
	// minimum training window. Recorded per city, never propagated.
	ErrInsufficientData = errors.New("insufficient data for training")

	// ErrNoModel is returned when a forecast is requested for a city
	// without a trained model.
	ErrNoModel = errors.New("no trained model for city")
)

// MinTrainingObservations is the minimum number of hourly observations a
// city needs before a model is trained for it.
const MinTrainingObservations = 48

// DefaultForecastDays is the horizon used when a caller does not request one.
const DefaultForecastDays = 7

// Row is a fully annotated forecast for one future hour. Rows are
// derived values; they are never mutated after creation.
type Row struct {
	Timestamp   time.Time    `json:"datetime"`
	PM25        float64      `json:"pm25_predicted"`
	Lower       float64      `json:"pm25_lower"`
	Upper       float64      `json:"pm25_upper"`
	AQIValue    *int         `json:"aqi_predicted"`
	AQICategory aqi.Category `json:"aqi_category"`
}

// annotate converts an engine prediction into an AQI-labeled row.
func annotate(p Prediction) Row {
	row := Row{
		Timestamp:   p.Timestamp,
		PM25:        p.Value,
		Lower:       p.Lower,
		Upper:       p.Upper,
		AQICategory: aqi.CategoryFor(p.Value),
	}
	if v, ok := aqi.Value(p.Value); ok {
		row.AQIValue = &v
	}
	return row
}
