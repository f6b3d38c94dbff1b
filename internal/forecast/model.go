// Package forecast implements the per-city PM2.5 forecasting model:
// a linear trend, hour-of-day seasonal averages, and a last-observed-value
// anchor, combined into hourly point forecasts with uncertainty bounds.
package forecast

import (
	"errors"
	"time"

	"github.com/madeeharehan/pakistan-air-quality-project/internal/dataset"
)

// Model errors.
var (
	ErrEmptySeries = errors.New("cannot fit model on empty series")
	ErrNotFitted   = errors.New("model has not been fitted")
)

// Component weights for the combined prediction. The last observed value
// anchors the forecast, the hourly pattern shapes it, and the trend nudges
// it over longer horizons.
const (
	baseWeight     = 0.5
	seasonalWeight = 0.3
	trendWeight    = 0.2
)

// trendScaleHours expresses the trend per calendar week so per-hour noise
// does not compound into large horizons.
const trendScaleHours = 168.0

// uncertaintyFraction sizes the bounds at 15% of the point estimate.
const uncertaintyFraction = 0.15

// Model holds the fitted state for one city. A Model is immutable after
// Fit; fitting again means creating a new instance.
type Model struct {
	// LastTimestamp is the instant of the most recent observation used
	// in fitting.
	LastTimestamp time.Time

	// BaseValue is the last observed series value.
	BaseValue float64

	// TrendSlope is the least-squares slope of value against observation
	// index, in concentration units per observation step.
	TrendSlope float64

	// SeasonalByHour maps hour-of-day (0-23) to the mean observed value
	// at that hour. Only hours actually observed have entries.
	SeasonalByHour map[int]float64

	fitted bool
}

// Prediction is one forecast triple for a target timestamp.
type Prediction struct {
	Timestamp time.Time
	Value     float64
	Lower     float64
	Upper     float64
}

// Fit trains a new model on the prepared series.
// The series must be non-empty and sorted ascending by timestamp.
func Fit(series dataset.Series) (*Model, error) {
	if len(series) == 0 {
		return nil, ErrEmptySeries
	}

	m := &Model{
		LastTimestamp:  series.Last().Timestamp,
		BaseValue:      series.Last().Value,
		TrendSlope:     regressionSlope(series.Values()),
		SeasonalByHour: hourlyMeans(series),
		fitted:         true,
	}
	return m, nil
}

// Predict produces one forecast triple per target timestamp, in input
// order. Timestamps at or before LastTimestamp are accepted; their
// negative horizon simply flows through the trend term, and the caller
// filters them out.
func (m *Model) Predict(timestamps []time.Time) ([]Prediction, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}

	predictions := make([]Prediction, len(timestamps))
	for i, ts := range timestamps {
		seasonal, ok := m.SeasonalByHour[ts.Hour()]
		if !ok {
			seasonal = m.BaseValue
		}

		hoursAhead := ts.Sub(m.LastTimestamp).Hours()
		trendComponent := m.TrendSlope * (hoursAhead / trendScaleHours)

		point := baseWeight*m.BaseValue + seasonalWeight*seasonal + trendWeight*trendComponent
		uncertainty := uncertaintyFraction * abs(point)

		// Point and both bounds are floored at zero independently;
		// bounds are not derived from the floored point.
		predictions[i] = Prediction{
			Timestamp: ts,
			Value:     max0(point),
			Lower:     max0(point - uncertainty),
			Upper:     max0(point + uncertainty),
		}
	}
	return predictions, nil
}

// FutureTimestamps generates days*24 consecutive hourly instants starting
// one hour after the model's last observation.
func (m *Model) FutureTimestamps(days int) []time.Time {
	steps := days * 24
	if steps <= 0 {
		return nil
	}

	out := make([]time.Time, steps)
	for i := 0; i < steps; i++ {
		out[i] = m.LastTimestamp.Add(time.Duration(i+1) * time.Hour)
	}
	return out
}

// Fitted reports whether the model has been through Fit.
func (m *Model) Fitted() bool {
	return m.fitted
}

// regressionSlope computes the ordinary least-squares slope of values
// against their 0-based index. A single observation has no trend.
func regressionSlope(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}

	nf := float64(n)
	denominator := nf*sumX2 - sumX*sumX
	if denominator == 0 {
		return 0
	}
	return (nf*sumXY - sumX*sumY) / denominator
}

// hourlyMeans computes the mean observed value per hour-of-day.
func hourlyMeans(series dataset.Series) map[int]float64 {
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for _, p := range series {
		hour := p.Timestamp.Hour()
		sums[hour] += p.Value
		counts[hour]++
	}

	means := make(map[int]float64, len(sums))
	for hour, sum := range sums {
		means[hour] = sum / float64(counts[hour])
	}
	return means
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
