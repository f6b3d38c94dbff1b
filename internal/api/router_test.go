package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madeeharehan/pakistan-air-quality-project/internal/api"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/auth"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/dataset"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/featureflags"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/forecast"
)

type stubRetrainer struct {
	cities []string
}

func (s *stubRetrainer) RequestRetrain(_ context.Context, cities []string) (string, error) {
	s.cities = cities
	return "job-123", nil
}

func testReadings() []dataset.Reading {
	base := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	readings := make([]dataset.Reading, 0, 144)
	for i := 0; i < 72; i++ {
		readings = append(readings, dataset.Reading{
			City:      "Lahore",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			PM25:      90 + float64(i%24),
		})
		readings = append(readings, dataset.Reading{
			City:      "Karachi",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			PM25:      40 + float64(i%12),
		})
	}
	return readings
}

func newTestRouter(t *testing.T) (http.Handler, *auth.Service, *stubRetrainer) {
	t.Helper()
	ctx := context.Background()
	readings := testReadings()

	datasetSvc := dataset.NewService(dataset.ServiceConfig{
		Repository: dataset.NewInMemoryRepositoryWithReadings(readings),
		Logger:     zerolog.Nop(),
	})

	trainer := forecast.NewTrainer(forecast.TrainerConfig{Logger: zerolog.Nop()})
	models := forecast.NewInMemoryModelStore()
	for city, model := range trainer.TrainAll(ctx, readings) {
		require.NoError(t, models.Save(ctx, city, model))
	}
	forecastSvc := forecast.NewService(forecast.ServiceConfig{
		Models: models,
		Logger: zerolog.Nop(),
	})

	authSvc := auth.NewService(auth.Config{
		SigningKey: "router-test-key",
		Issuer:     "https://api.pakairquality.pk",
		Audience:   "paq-api",
	})

	flagSvc := featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewInMemoryRepository(),
		Logger:     zerolog.Nop(),
	})

	retrainer := &stubRetrainer{}
	router := api.NewRouter(api.RouterConfig{
		Version:            "test",
		Logger:             zerolog.Nop(),
		AuthService:        authSvc,
		DatasetService:     datasetSvc,
		ForecastService:    forecastSvc,
		FeatureFlagService: flagSvc,
		Retrainer:          retrainer,
	})
	return router, authSvc, retrainer
}

func doRequest(t *testing.T, router http.Handler, method, path string, body []byte, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_ListCities(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/cities", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Cities []string `json:"cities"`
		Count  int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"Karachi", "Lahore"}, body.Cities)
	assert.Equal(t, 2, body.Count)
}

func TestRouter_GetCurrent(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/current/Lahore", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		City        string   `json:"city"`
		PM25        float64  `json:"pm25"`
		AQIValue    *float64 `json:"aqi_value"`
		AQICategory string   `json:"aqi_category"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Lahore", body.City)
	assert.NotNil(t, body.AQIValue)
	assert.NotEmpty(t, body.AQICategory)
}

func TestRouter_GetCurrent_UnknownCity(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/current/Atlantis", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestRouter_GetHistory(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/history/Karachi?hours=24", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		City     string            `json:"city"`
		Hours    int               `json:"hours"`
		Count    int               `json:"count"`
		Readings []json.RawMessage `json:"readings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Karachi", body.City)
	assert.Equal(t, 24, body.Hours)
	assert.Equal(t, 25, body.Count)
	assert.Len(t, body.Readings, 25)
}

func TestRouter_GetHistory_InvalidHours(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/history/Karachi?hours=abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_GetStats(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/stats/Lahore", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		City          string  `json:"city"`
		TotalReadings int     `json:"total_readings"`
		AvgPM25       float64 `json:"avg_pm25"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Lahore", body.City)
	assert.Equal(t, 72, body.TotalReadings)
	assert.Greater(t, body.AvgPM25, 0.0)
}

func TestRouter_GetForecast(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/forecast/Lahore?days=2", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		City  string            `json:"city"`
		Days  int               `json:"days"`
		Count int               `json:"count"`
		Rows  []json.RawMessage `json:"forecast"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Days)
	assert.Equal(t, 48, body.Count)
	assert.Len(t, body.Rows, 48)
}

func TestRouter_GetForecast_DaysOutOfRange(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/forecast/Lahore?days=31", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_GetForecast_NoModel(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/forecast/Atlantis", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_AllCurrent(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/all-current", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body []json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body, 2)
}

func TestRouter_Health(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "OK", body.Status)
}

func TestRouter_Retrain_RequiresAuth(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/admin/retrain", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_Retrain_Accepted(t *testing.T) {
	router, authSvc, retrainer := newTestRouter(t)

	token, _, err := authSvc.IssueToken("ops", auth.RoleAdmin)
	require.NoError(t, err)

	payload := []byte(`{"cities":["Lahore"]}`)
	rec := doRequest(t, router, http.MethodPost, "/api/admin/retrain", payload, token)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var body struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "job-123", body.JobID)
	assert.Equal(t, []string{"Lahore"}, retrainer.cities)
}

func TestRouter_FeatureFlags(t *testing.T) {
	router, authSvc, _ := newTestRouter(t)

	token, _, err := authSvc.IssueToken("ops", auth.RoleAdmin)
	require.NoError(t, err)

	rec := doRequest(t, router, http.MethodGet, "/api/admin/feature-flags/", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Items []struct {
			Key string `json:"key"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Items)
}
