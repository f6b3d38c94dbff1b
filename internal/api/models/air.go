package models

import (
	"github.com/madeeharehan/pakistan-air-quality-project/internal/dataset"
)

// CityList is the response for the city index endpoint.
type CityList struct {
	Cities []string `json:"cities"`
	Count  int      `json:"count"`
}

// ReadingPayload is one observed PM2.5 reading with its AQI label.
type ReadingPayload struct {
	City        string    `json:"city"`
	Datetime    Timestamp `json:"datetime"`
	PM25        float64   `json:"pm25"`
	AQIValue    *float64  `json:"aqi_value,omitempty"`
	AQICategory string    `json:"aqi_category,omitempty"`
}

// History is the response for the history endpoint.
type History struct {
	City     string           `json:"city"`
	Hours    int              `json:"hours"`
	Count    int              `json:"count"`
	Readings []ReadingPayload `json:"readings"`
}

// CityStats is the response for the stats endpoint.
type CityStats struct {
	City                 string         `json:"city"`
	AvgAQI               float64        `json:"avg_aqi"`
	MaxAQI               float64        `json:"max_aqi"`
	MinAQI               float64        `json:"min_aqi"`
	AvgPM25              float64        `json:"avg_pm25"`
	MaxPM25              float64        `json:"max_pm25"`
	MinPM25              float64        `json:"min_pm25"`
	TotalReadings        int            `json:"total_readings"`
	CategoryDistribution map[string]int `json:"category_distribution"`
}

// NewReadingPayload converts a stored reading into its API form.
func NewReadingPayload(r dataset.Reading) ReadingPayload {
	return ReadingPayload{
		City:        r.City,
		Datetime:    Timestamp(r.Timestamp),
		PM25:        r.PM25,
		AQIValue:    r.AQIValue,
		AQICategory: r.AQICategory,
	}
}

// NewReadingPayloads converts a slice of stored readings.
func NewReadingPayloads(readings []dataset.Reading) []ReadingPayload {
	out := make([]ReadingPayload, len(readings))
	for i, r := range readings {
		out[i] = NewReadingPayload(r)
	}
	return out
}

// NewCityStats converts service statistics into their API form.
func NewCityStats(s dataset.CityStats) CityStats {
	return CityStats{
		City:                 s.City,
		AvgAQI:               s.AvgAQI,
		MaxAQI:               s.MaxAQI,
		MinAQI:               s.MinAQI,
		AvgPM25:              s.AvgPM25,
		MaxPM25:              s.MaxPM25,
		MinPM25:              s.MinPM25,
		TotalReadings:        s.TotalReadings,
		CategoryDistribution: s.CategoryDistribution,
	}
}
