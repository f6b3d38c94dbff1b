package dataset_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madeeharehan/pakistan-air-quality-project/internal/dataset"
)

func hourlyReadings(city string, start time.Time, values []float64) []dataset.Reading {
	readings := make([]dataset.Reading, len(values))
	for i, v := range values {
		readings[i] = dataset.Reading{
			City:      city,
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			PM25:      v,
		}
	}
	return readings
}

func TestPrepareSeries_AveragesDuplicateTimestamps(t *testing.T) {
	ts := time.Date(2024, 11, 3, 8, 0, 0, 0, time.UTC)
	readings := []dataset.Reading{
		{City: "Karachi", Timestamp: ts, PM25: 10.0},
		{City: "Karachi", Timestamp: ts, PM25: 20.0},
	}

	series, err := dataset.PrepareSeries(readings, "Karachi")
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, ts, series[0].Timestamp)
	assert.InDelta(t, 15.0, series[0].Value, 1e-9)
}

func TestPrepareSeries_SortsAscending(t *testing.T) {
	base := time.Date(2024, 11, 3, 0, 0, 0, 0, time.UTC)
	readings := []dataset.Reading{
		{City: "Lahore", Timestamp: base.Add(2 * time.Hour), PM25: 30},
		{City: "Lahore", Timestamp: base, PM25: 10},
		{City: "Lahore", Timestamp: base.Add(time.Hour), PM25: 20},
	}

	series, err := dataset.PrepareSeries(readings, "Lahore")
	require.NoError(t, err)
	require.Len(t, series, 3)
	for i := 1; i < len(series); i++ {
		assert.True(t, series[i].Timestamp.After(series[i-1].Timestamp))
	}
	assert.Equal(t, 10.0, series[0].Value)
	assert.Equal(t, 30.0, series[2].Value)
}

func TestPrepareSeries_FiltersOtherCities(t *testing.T) {
	base := time.Date(2024, 11, 3, 0, 0, 0, 0, time.UTC)
	readings := append(
		hourlyReadings("Lahore", base, []float64{10, 20}),
		hourlyReadings("Karachi", base, []float64{99, 99, 99})...,
	)

	series, err := dataset.PrepareSeries(readings, "Lahore")
	require.NoError(t, err)
	assert.Len(t, series, 2)
}

func TestPrepareSeries_CityNotFound(t *testing.T) {
	base := time.Date(2024, 11, 3, 0, 0, 0, 0, time.UTC)
	readings := hourlyReadings("Lahore", base, []float64{10, 20})

	_, err := dataset.PrepareSeries(readings, "Multan")
	require.ErrorIs(t, err, dataset.ErrCityNotFound)
}

func TestCities_EncounterOrder(t *testing.T) {
	base := time.Date(2024, 11, 3, 0, 0, 0, 0, time.UTC)
	readings := []dataset.Reading{
		{City: "Peshawar", Timestamp: base, PM25: 1},
		{City: "Lahore", Timestamp: base, PM25: 1},
		{City: "Peshawar", Timestamp: base.Add(time.Hour), PM25: 1},
		{City: "Islamabad", Timestamp: base, PM25: 1},
	}

	assert.Equal(t, []string{"Peshawar", "Lahore", "Islamabad"}, dataset.Cities(readings))
}
