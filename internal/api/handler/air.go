// Package handler provides HTTP handlers for the air quality API.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/madeeharehan/pakistan-air-quality-project/internal/api/models"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/api/response"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/dataset"
)

// AirHandler serves readings, history and statistics queries.
type AirHandler struct {
	service *dataset.Service
}

// NewAirHandler creates a new AirHandler.
func NewAirHandler(service *dataset.Service) *AirHandler {
	return &AirHandler{service: service}
}

// ListCities handles GET /api/cities.
func (h *AirHandler) ListCities(w http.ResponseWriter, r *http.Request) {
	cities, err := h.service.Cities(r.Context())
	if err != nil {
		response.InternalError(w, r, "failed to list cities")
		return
	}
	response.JSON(w, r, http.StatusOK, models.CityList{
		Cities: cities,
		Count:  len(cities),
	})
}

// GetCurrent handles GET /api/current/{city}.
func (h *AirHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	city := chi.URLParam(r, "city")

	reading, err := h.service.Current(r.Context(), city)
	if err != nil {
		if errors.Is(err, dataset.ErrCityNotFound) {
			response.NotFound(w, r, "no data for city "+city)
			return
		}
		response.InternalError(w, r, "failed to load current reading")
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewReadingPayload(*reading))
}

// GetAllCurrent handles GET /api/all-current.
func (h *AirHandler) GetAllCurrent(w http.ResponseWriter, r *http.Request) {
	readings, err := h.service.AllCurrent(r.Context())
	if err != nil {
		response.InternalError(w, r, "failed to load current readings")
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewReadingPayloads(readings))
}

// GetHistory handles GET /api/history/{city}?hours=168&limit=1000.
func (h *AirHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	city := chi.URLParam(r, "city")

	hours, ok := queryInt(w, r, "hours", 168)
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit", 1000)
	if !ok {
		return
	}

	readings, err := h.service.History(r.Context(), city, hours, limit)
	if err != nil {
		if errors.Is(err, dataset.ErrCityNotFound) {
			response.NotFound(w, r, "no data for city "+city)
			return
		}
		response.InternalError(w, r, "failed to load history")
		return
	}

	response.JSON(w, r, http.StatusOK, models.History{
		City:     city,
		Hours:    hours,
		Count:    len(readings),
		Readings: models.NewReadingPayloads(readings),
	})
}

// GetStats handles GET /api/stats/{city}.
func (h *AirHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	city := chi.URLParam(r, "city")

	stats, err := h.service.Stats(r.Context(), city)
	if err != nil {
		if errors.Is(err, dataset.ErrCityNotFound) {
			response.NotFound(w, r, "no data for city "+city)
			return
		}
		response.InternalError(w, r, "failed to compute stats")
		return
	}
	if stats.TotalReadings == 0 {
		response.NotFound(w, r, "no data for city "+city)
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewCityStats(*stats))
}

// queryInt parses an optional positive integer query parameter. Writes a
// 400 response and returns false on malformed input.
func queryInt(w http.ResponseWriter, r *http.Request, name string, defaultValue int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		response.BadRequest(w, r, "invalid query parameter", []models.FieldError{
			{Field: name, Message: "must be a positive integer", Code: "invalid"},
		})
		return 0, false
	}
	return value, true
}
