package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/madeeharehan/pakistan-air-quality-project/internal/api/models"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/api/response"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/featureflags"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/forecast"
)

// ForecastHandler serves model forecasts.
type ForecastHandler struct {
	service  *forecast.Service
	flags    *featureflags.Service
	validate *validator.Validate
}

// NewForecastHandler creates a new ForecastHandler.
func NewForecastHandler(service *forecast.Service, flags *featureflags.Service) *ForecastHandler {
	return &ForecastHandler{
		service:  service,
		flags:    flags,
		validate: validator.New(),
	}
}

// GetForecast handles GET /api/forecast/{city}?days=7.
func (h *ForecastHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	city := chi.URLParam(r, "city")

	days, ok := queryInt(w, r, "days", forecast.DefaultForecastDays)
	if !ok {
		return
	}

	query := models.ForecastQuery{Days: days}
	if err := h.validate.Struct(query); err != nil {
		response.BadRequest(w, r, "invalid forecast horizon", []models.FieldError{
			{Field: "days", Message: "must be between 1 and 30", Code: "out_of_range"},
		})
		return
	}
	cacheOnly := false
	if h.flags != nil {
		if maxDays := h.flags.ForecastMaxDays(r.Context()); days > maxDays {
			response.BadRequest(w, r, "invalid forecast horizon", []models.FieldError{
				{Field: "days", Message: "exceeds the configured maximum", Code: "out_of_range"},
			})
			return
		}
		cacheOnly = h.flags.IsForecastCacheOnly(r.Context())
	}

	if cacheOnly {
		rows, err := h.service.CachedForecast(r.Context(), city)
		if err != nil {
			response.ServiceUnavailable(w, r, "forecasts are temporarily served from cache only")
			return
		}
		response.JSON(w, r, http.StatusOK, models.Forecast{
			City:  city,
			Days:  days,
			Count: len(rows),
			Rows:  rows,
		})
		return
	}

	rows, err := h.service.Forecast(r.Context(), city, days)
	if err != nil {
		if errors.Is(err, forecast.ErrNoModel) {
			response.NotFound(w, r, "no trained model for city "+city)
			return
		}
		response.InternalError(w, r, "failed to compute forecast")
		return
	}

	response.JSON(w, r, http.StatusOK, models.Forecast{
		City:  city,
		Days:  days,
		Count: len(rows),
		Rows:  rows,
	})
}
