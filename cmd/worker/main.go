// Package main provides the entrypoint for the pipeline worker: it
// ingests OpenAQ readings, retrains the per-city models on a schedule,
// and processes on-demand retrain jobs from Pub/Sub.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/madeeharehan/pakistan-air-quality-project/internal/api/middleware"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/database"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/dataset"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/featureflags"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/forecast"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/ingest/openaq"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/telemetry"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "paq-worker"

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
		Msg("starting air quality worker")

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	// Initialize OpenTelemetry
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    os.Getenv("APP_ENV"),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Enabled:        os.Getenv("OTEL_ENABLED") == "true",
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

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Str("database", dbConfig.Database).
		Msg("database connected")

	readingRepo := dataset.NewPostgresRepository(pool)
	modelStore := forecast.NewPostgresModelStore(pool)

	// Snapshot cache shared with the API.
	var snapshotStore forecast.SnapshotStore
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		snapshotStore = forecast.NewRedisSnapshotStore(redisClient, time.Hour)
		log.Info().Str("addr", redisAddr).Msg("redis snapshot cache enabled")
	}

	ffService := featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewPostgresRepository(pool),
		Logger:     log,
		CacheTTL:   1 * time.Minute,
	})

	// OpenAQ ingest client. Without an API key the worker only retrains
	// on already-stored readings.
	refreshConfig := worker.DefaultRefreshConfig()
	if cities := os.Getenv("TARGET_CITIES"); cities != "" {
		refreshConfig.Targets = nil
		for _, name := range strings.Split(cities, ",") {
			refreshConfig.Targets = append(refreshConfig.Targets, worker.CityTarget{
				Name:     strings.TrimSpace(name),
				Priority: 1,
			})
		}
	}

	var fetcher worker.Fetcher
	if apiKey := os.Getenv("OPENAQ_API_KEY"); apiKey != "" {
		providerMetrics, err := middleware.NewProviderMetrics()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize provider metrics")
		}

		client, err := openaq.NewClient(openaq.Config{
			APIKey:  apiKey,
			Cities:  refreshConfig.CityNames(),
			Metrics: providerMetrics,
			Logger:  log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create openaq client")
		}
		fetcher = client
		log.Info().Msg("openaq ingest enabled")
	} else {
		refreshConfig.Ingest = false
		log.Warn().Msg("OPENAQ_API_KEY not set - ingest disabled")
	}

	refreshJob := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:     refreshConfig,
		Logger:     log,
		Fetcher:    fetcher,
		Repository: readingRepo,
		Models:     modelStore,
		Snapshots:  snapshotStore,
		Flags:      ffService,
	})

	// Scheduled pipeline runs.
	interval, _ := time.ParseDuration(os.Getenv("REFRESH_INTERVAL"))
	scheduler := worker.NewScheduler(worker.SchedulerConfig{
		Interval: interval,
		Job:      refreshJob,
		Logger:   log,
	})
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer scheduler.Stop()

	// On-demand jobs over Pub/Sub, when configured.
	projectID := os.Getenv("PUBSUB_PROJECT_ID")
	subscription := os.Getenv("PUBSUB_SUBSCRIPTION")
	if projectID != "" && subscription != "" {
		pubsubHandler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        projectID,
			SubscriptionName: subscription,
			RefreshJob:       refreshJob,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer pubsubHandler.Close()

		go func() {
			if err := pubsubHandler.Start(ctx); err != nil {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	} else {
		log.Info().Msg("pubsub not configured - scheduled runs only")
	}

	// Health endpoint for the container platform.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"OK","version":"` + Version + `"}`))
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
