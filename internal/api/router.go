// Package api provides the HTTP API for the air quality service.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/madeeharehan/pakistan-air-quality-project/internal/api/handler"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/api/middleware"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/auth"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/dataset"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/featureflags"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/forecast"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version            string
	BuildTime          string
	Logger             zerolog.Logger
	ServiceName        string
	Metrics            *middleware.Metrics
	AuthService        *auth.Service
	DatasetService     *dataset.Service
	ForecastService    *forecast.Service
	FeatureFlagService *featureflags.Service
	Retrainer          handler.Retrainer
	Readiness          handler.ReadinessChecker
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "paq-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	airHandler := handler.NewAirHandler(cfg.DatasetService)
	forecastHandler := handler.NewForecastHandler(cfg.ForecastService, cfg.FeatureFlagService)
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Readiness, cfg.ForecastService)
	adminHandler := handler.NewAdminHandler(cfg.Retrainer)
	featureFlagsHandler := handler.NewFeatureFlagsHandler(cfg.FeatureFlagService)

	adminAuth := middleware.RequireAdmin(cfg.AuthService)

	adminRateLimit := middleware.RateLimitByIP(middleware.AdminRateLimit)       // 10 req/min
	forecastRateLimit := middleware.RateLimitByIP(middleware.ForecastRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min

	r.Route("/api", func(r chi.Router) {
		// Ops endpoints (public, unthrottled so probes never get a 429)
		r.Get("/health", opsHandler.HealthCheck)
		r.Get("/ready", opsHandler.ReadinessCheck)
		r.Get("/status", opsHandler.SystemStatus)

		// Read endpoints - standard rate limiting
		r.Group(func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/cities", airHandler.ListCities)
			r.Get("/current/{city}", airHandler.GetCurrent)
			r.Get("/all-current", airHandler.GetAllCurrent)
			r.Get("/history/{city}", airHandler.GetHistory)
			r.Get("/stats/{city}", airHandler.GetStats)
		})

		// Forecast endpoint - may run a model on cache miss
		r.With(forecastRateLimit).Get("/forecast/{city}", forecastHandler.GetForecast)

		// Admin endpoints (authenticated)
		r.Route("/admin", func(r chi.Router) {
			r.Use(adminAuth)
			r.Use(adminRateLimit)

			r.Post("/retrain", adminHandler.Retrain)

			r.Route("/feature-flags", func(r chi.Router) {
				r.Get("/", featureFlagsHandler.ListFeatureFlags)
				r.Put("/", featureFlagsHandler.UpsertFeatureFlags)
				r.Post("/invalidate", featureFlagsHandler.InvalidateCache)
			})
		})
	})

	return r
}
