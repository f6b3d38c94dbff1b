// Package main provides the entrypoint for the air quality API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/madeeharehan/pakistan-air-quality-project/internal/api"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/api/handler"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/api/middleware"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/auth"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/database"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/dataset"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/featureflags"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/forecast"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/telemetry"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// alwaysReady satisfies the readiness check when readings are held in
// memory and there is no backing store to probe.
type alwaysReady struct{}

func (alwaysReady) Ping(context.Context) error { return nil }

func main() {
	const serviceName = "paq-api"

	// Load .env for local development; ignored when absent.
	_ = godotenv.Load()

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting air quality API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Choose the reading store. A DATA_DIR of raw CSV exports runs the
	// service self-contained; otherwise readings live in Postgres and
	// the worker keeps them fresh.
	var (
		readingRepo dataset.Repository
		modelStore  forecast.ModelStore
		flagRepo    featureflags.Repository
		readiness   handler.ReadinessChecker = alwaysReady{}
	)

	dataDir := os.Getenv("DATA_DIR")
	if dataDir != "" {
		readings, err := dataset.CleanDir(dataDir, log)
		if err != nil {
			log.Fatal().Err(err).Str("dir", dataDir).Msg("failed to clean dataset")
		}
		readings = dataset.LabelAll(readings)
		readingRepo = dataset.NewInMemoryRepositoryWithReadings(readings)
		modelStore = forecast.NewInMemoryModelStore()
		flagRepo = featureflags.NewInMemoryRepository()
		log.Info().
			Str("dir", dataDir).
			Int("readings", len(readings)).
			Msg("dataset loaded from CSV")
	} else {
		dbConfig := database.ConfigFromEnv()
		pool, err := database.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("database connected")

		readingRepo = dataset.NewPostgresRepository(pool)
		modelStore = forecast.NewPostgresModelStore(pool)
		flagRepo = featureflags.NewPostgresRepository(pool)
		readiness = pool
	}

	// Snapshot cache: Redis when configured, in-process otherwise.
	var snapshotStore forecast.SnapshotStore
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		snapshotStore = forecast.NewRedisSnapshotStore(redisClient, time.Hour)
		log.Info().Str("addr", redisAddr).Msg("redis snapshot cache enabled")
	} else {
		snapshotStore = forecast.NewInMemorySnapshotStore(time.Hour)
	}

	// Initialize JWT service (get signing key from environment)
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		jwtSigningKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}

	authService := auth.NewService(auth.Config{
		SigningKey: jwtSigningKey,
		Issuer:     os.Getenv("JWT_ISSUER"),
		Audience:   os.Getenv("JWT_AUDIENCE"),
	})
	log.Info().Msg("auth service initialized")

	// Initialize feature flags service
	ffService := featureflags.NewService(featureflags.ServiceConfig{
		Repository: flagRepo,
		Logger:     log,
		CacheTTL:   1 * time.Minute,
	})
	log.Info().Msg("feature flags service initialized")

	// Initialize dataset and forecast services
	datasetService := dataset.NewService(dataset.ServiceConfig{
		Repository: readingRepo,
		Logger:     log,
	})
	forecastService := forecast.NewService(forecast.ServiceConfig{
		Models:    modelStore,
		Snapshots: snapshotStore,
		Logger:    log,
	})

	// The retrain pipeline runs in-process here; deployments with the
	// dedicated worker hand jobs off over Pub/Sub instead.
	refreshJob := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			Targets: worker.DefaultCityTargets(),
			Retrain: true,
		},
		Logger:     log,
		Repository: readingRepo,
		Models:     modelStore,
		Snapshots:  snapshotStore,
		Flags:      ffService,
	})

	var retrainer handler.Retrainer
	projectID := os.Getenv("PUBSUB_PROJECT_ID")
	topicName := os.Getenv("PUBSUB_TOPIC")
	if projectID != "" && topicName != "" {
		publisher, err := worker.NewPublisher(ctx, worker.PublisherConfig{
			ProjectID: projectID,
			TopicName: topicName,
			Logger:    log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create job publisher")
		}
		defer publisher.Close()
		retrainer = publisher
		log.Info().Str("topic", topicName).Msg("retrain jobs published to pubsub")
	} else {
		retrainer = worker.NewInlineRetrainer(refreshJob, 10*time.Minute, log)
		log.Info().Msg("retrain jobs run in-process")
	}

	// In CSV mode the model store starts empty; train once at startup
	// so forecasts are available immediately.
	if dataDir != "" {
		startupCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		result := refreshJob.Run(startupCtx)
		cancel()
		log.Info().
			Int("trained", result.Trained).
			Int("skipped", result.Skipped).
			Msg("startup training completed")
	}

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		Logger:             log,
		ServiceName:        serviceName,
		Metrics:            metrics,
		AuthService:        authService,
		DatasetService:     datasetService,
		ForecastService:    forecastService,
		FeatureFlagService: ffService,
		Retrainer:          retrainer,
		Readiness:          readiness,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
