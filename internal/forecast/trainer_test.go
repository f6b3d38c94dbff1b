package forecast_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madeeharehan/pakistan-air-quality-project/internal/dataset"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/forecast"
)

func cityReadings(city string, start time.Time, n int) []dataset.Reading {
	readings := make([]dataset.Reading, n)
	for i := 0; i < n; i++ {
		readings[i] = dataset.Reading{
			City:      city,
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			PM25:      50 + 10*float64(i%24)/24,
		}
	}
	return readings
}

func TestTrainAll_SkipsCitiesWithTooLittleData(t *testing.T) {
	start := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	readings := append(
		cityReadings("Lahore", start, 200),
		cityReadings("Hunza", start, 10)...,
	)

	trainer := forecast.NewTrainer(forecast.TrainerConfig{Logger: zerolog.Nop()})
	models := trainer.TrainAll(context.Background(), readings)

	require.Len(t, models, 1)
	require.Contains(t, models, "Lahore")
	assert.True(t, models["Lahore"].Fitted())
	assert.Equal(t, start.Add(199*time.Hour), models["Lahore"].LastTimestamp)
}

func TestTrainAll_MinObservationsOverride(t *testing.T) {
	start := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	readings := cityReadings("Quetta", start, 10)

	trainer := forecast.NewTrainer(forecast.TrainerConfig{
		Logger:          zerolog.Nop(),
		MinObservations: 5,
	})
	models := trainer.TrainAll(context.Background(), readings)

	require.Contains(t, models, "Quetta")
}

func TestTrainAll_Cancelled(t *testing.T) {
	start := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	readings := cityReadings("Lahore", start, 200)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	trainer := forecast.NewTrainer(forecast.TrainerConfig{Logger: zerolog.Nop()})
	models := trainer.TrainAll(ctx, readings)
	assert.Empty(t, models)
}

func TestForecast_HourlyRowsWithAQI(t *testing.T) {
	start := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	series := hourlySeries(start, make([]float64, 72))
	for i := range series {
		series[i].Value = 80 + float64(i%12)
	}

	model, err := forecast.Fit(series)
	require.NoError(t, err)

	rows, err := forecast.Forecast(model, 7)
	require.NoError(t, err)
	require.Len(t, rows, 7*24)

	assert.Equal(t, model.LastTimestamp.Add(time.Hour), rows[0].Timestamp)
	for i, row := range rows {
		if i > 0 {
			assert.Equal(t, time.Hour, row.Timestamp.Sub(rows[i-1].Timestamp))
		}
		assert.True(t, row.Timestamp.After(model.LastTimestamp))
		assert.GreaterOrEqual(t, row.PM25, 0.0)
		assert.LessOrEqual(t, row.Lower, row.PM25)
		assert.GreaterOrEqual(t, row.Upper, row.PM25)
		require.NotNil(t, row.AQIValue)
		assert.NotEmpty(t, row.AQICategory)
	}
}

func TestForecastAll(t *testing.T) {
	start := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	readings := append(
		cityReadings("Lahore", start, 100),
		cityReadings("Karachi", start, 100)...,
	)

	trainer := forecast.NewTrainer(forecast.TrainerConfig{Logger: zerolog.Nop()})
	models := trainer.TrainAll(context.Background(), readings)
	require.Len(t, models, 2)

	forecasts := trainer.ForecastAll(models, 2)
	require.Len(t, forecasts, 2)
	assert.Len(t, forecasts["Lahore"], 2*24)
	assert.Len(t, forecasts["Karachi"], 2*24)
}
