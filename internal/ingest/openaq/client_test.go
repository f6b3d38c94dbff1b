package openaq_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madeeharehan/pakistan-air-quality-project/internal/ingest/openaq"
)

const locationsPayload = `{
	"results": [
		{
			"id": 10,
			"name": "Lahore US Consulate",
			"locality": "Lahore",
			"sensors": [
				{"id": 100, "parameter": {"name": "pm10"}},
				{"id": 101, "parameter": {"name": "pm25"}}
			]
		},
		{
			"id": 11,
			"name": "Port Qasim",
			"locality": "Karachi",
			"sensors": [
				{"id": 111, "parameter": {"name": "pm25"}}
			]
		},
		{
			"id": 12,
			"name": "Quetta Station",
			"locality": "Quetta",
			"sensors": [
				{"id": 121, "parameter": {"name": "pm25"}}
			]
		},
		{
			"id": 13,
			"name": "Multan NO2 Only",
			"locality": "Multan",
			"sensors": [
				{"id": 131, "parameter": {"name": "no2"}}
			]
		}
	]
}`

func measurementsPayload(values ...float64) string {
	base := time.Date(2024, 11, 3, 0, 0, 0, 0, time.UTC)
	out := `{"results":[`
	for i, v := range values {
		if i > 0 {
			out += ","
		}
		ts := base.Add(time.Duration(i) * time.Hour).Format(time.RFC3339)
		out += fmt.Sprintf(`{"value":%g,"period":{"datetimeFrom":{"utc":%q}}}`, v, ts)
	}
	return out + `]}`
}

func newTestServer(t *testing.T) (*httptest.Server, *map[string]int) {
	t.Helper()
	hits := make(map[string]int)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "secret-key", r.Header.Get("X-API-Key"))
		hits[r.URL.Path]++

		switch r.URL.Path {
		case "/locations":
			assert.Equal(t, "109", r.URL.Query().Get("countries_id"))
			assert.Equal(t, "2", r.URL.Query().Get("parameters_id"))
			_, _ = w.Write([]byte(locationsPayload))
		case "/sensors/101/measurements":
			_, _ = w.Write([]byte(measurementsPayload(120.5, 115.2, 130.8)))
		case "/sensors/111/measurements":
			_, _ = w.Write([]byte(measurementsPayload(42.1)))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	return server, &hits
}

func newTestClient(t *testing.T, baseURL string, cities []string) *openaq.Client {
	t.Helper()
	client, err := openaq.NewClient(openaq.Config{
		BaseURL: baseURL,
		APIKey:  "secret-key",
		Cities:  cities,
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := openaq.NewClient(openaq.Config{})
	require.ErrorIs(t, err, openaq.ErrMissingAPIKey)
}

func TestFetchReadings(t *testing.T) {
	server, hits := newTestServer(t)
	defer server.Close()

	client := newTestClient(t, server.URL, []string{"Lahore", "Karachi", "Islamabad"})

	readings, err := client.FetchReadings(context.Background())
	require.NoError(t, err)
	require.Len(t, readings, 4)

	byCity := make(map[string]int)
	for _, r := range readings {
		byCity[r.City]++
		assert.Equal(t, time.UTC, r.Timestamp.Location())
		assert.Greater(t, r.PM25, 0.0)
	}
	assert.Equal(t, 3, byCity["Lahore"])
	assert.Equal(t, 1, byCity["Karachi"])

	// Quetta is not a target city and the Multan location has no pm25
	// sensor; neither should have been queried.
	assert.Zero(t, (*hits)["/sensors/121/measurements"])
	assert.Zero(t, (*hits)["/sensors/131/measurements"])
}

func TestFetchReadings_DropsInvalidValues(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/locations":
			_, _ = w.Write([]byte(locationsPayload))
		case "/sensors/101/measurements":
			// -999 is OpenAQ's sensor fault sentinel; 2500 is outside
			// the physical range. Both must be cleaned out.
			_, _ = w.Write([]byte(measurementsPayload(-999, 120.5, 2500, 0)))
		case "/sensors/111/measurements":
			_, _ = w.Write([]byte(measurementsPayload(42.1)))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, []string{"Lahore", "Karachi"})

	readings, err := client.FetchReadings(context.Background())
	require.NoError(t, err)
	require.Len(t, readings, 2)

	for _, r := range readings {
		assert.Greater(t, r.PM25, 0.0)
		assert.Less(t, r.PM25, 1000.0)
	}
}

func TestFetchReadings_SkipsFailingSensor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/locations":
			_, _ = w.Write([]byte(locationsPayload))
		case "/sensors/101/measurements":
			w.WriteHeader(http.StatusForbidden)
		case "/sensors/111/measurements":
			_, _ = w.Write([]byte(measurementsPayload(42.1)))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, []string{"Lahore", "Karachi"})

	readings, err := client.FetchReadings(context.Background())
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, "Karachi", readings[0].City)
}
