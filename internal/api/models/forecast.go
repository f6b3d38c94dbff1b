package models

import (
	"github.com/madeeharehan/pakistan-air-quality-project/internal/forecast"
)

// ForecastQuery is the validated query for the forecast endpoint.
type ForecastQuery struct {
	// Days is the forecast horizon in days.
	Days int `validate:"gte=1,lte=30"`
}

// Forecast is the response for the forecast endpoint.
type Forecast struct {
	City  string         `json:"city"`
	Days  int            `json:"days"`
	Count int            `json:"count"`
	Rows  []forecast.Row `json:"forecast"`
}

// RetrainRequest is the body for the admin retrain endpoint.
// An empty city list retrains every city with data.
type RetrainRequest struct {
	Cities []string `json:"cities" validate:"omitempty,dive,min=1,max=100"`
}

// RetrainResponse acknowledges an accepted retrain job.
type RetrainResponse struct {
	JobID       string    `json:"job_id"`
	Cities      []string  `json:"cities,omitempty"`
	RequestedAt Timestamp `json:"requested_at"`
}
