package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/madeeharehan/pakistan-air-quality-project/internal/api/models"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/api/response"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/forecast"
)

// ReadinessChecker reports whether a subsystem is ready to serve.
type ReadinessChecker interface {
	Ping(ctx context.Context) error
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version       string
	buildTime     string
	storage       ReadinessChecker
	forecastStats *forecast.Service
}

// NewOpsHandler creates a new OpsHandler. storage and forecastStats may
// be nil; the corresponding checks are skipped.
func NewOpsHandler(version, buildTime string, storage ReadinessChecker, forecastStats *forecast.Service) *OpsHandler {
	return &OpsHandler{
		version:       version,
		buildTime:     buildTime,
		storage:       storage,
		forecastStats: forecastStats,
	}
}

// HealthCheck handles GET /api/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /api/ready - readiness check.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	status := models.HealthStatusOK
	code := http.StatusOK
	if h.storage != nil {
		if err := h.storage.Ping(r.Context()); err != nil {
			status = models.HealthStatusFail
			code = http.StatusServiceUnavailable
		}
	}

	response.JSON(w, r, code, models.Health{
		Status: status,
		Time:   models.Timestamp(time.Now()),
	})
}

// SystemStatus handles GET /api/status - subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	subsystems := make([]models.SubsystemStatus, 0, 2)

	if h.storage != nil {
		s := models.SubsystemStatus{Name: "storage", Status: models.HealthStatusOK}
		if err := h.storage.Ping(r.Context()); err != nil {
			detail := err.Error()
			s.Status = models.HealthStatusFail
			s.Detail = &detail
		}
		subsystems = append(subsystems, s)
	}

	trained := 0
	if h.forecastStats != nil {
		trained = h.forecastStats.ModelCount(r.Context())
		s := models.SubsystemStatus{Name: "forecast-models", Status: models.HealthStatusOK}
		if trained == 0 {
			s.Status = models.HealthStatusDegraded
		}
		subsystems = append(subsystems, s)
	}

	overall := models.HealthStatusOK
	for _, s := range subsystems {
		if s.Status == models.HealthStatusFail {
			overall = models.HealthStatusFail
			break
		}
		if s.Status == models.HealthStatusDegraded {
			overall = models.HealthStatusDegraded
		}
	}

	response.JSON(w, r, http.StatusOK, models.SystemStatus{
		Status:        overall,
		Time:          models.Timestamp(time.Now()),
		Subsystems:    subsystems,
		TrainedCities: trained,
	})
}
