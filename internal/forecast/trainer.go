package forecast

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/madeeharehan/pakistan-air-quality-project/internal/dataset"
)

// TrainerConfig holds configuration for the training orchestrator.
type TrainerConfig struct {
	// Logger for per-city training events.
	Logger zerolog.Logger

	// MinObservations overrides the minimum training window.
	// Default: MinTrainingObservations.
	MinObservations int
}

// Trainer fits models and generates forecasts for every city in a
// cleaned dataset, isolating per-city failures so one bad city never
// aborts the batch.
type Trainer struct {
	logger zerolog.Logger
	minObs int
}

// NewTrainer creates a new training orchestrator.
func NewTrainer(cfg TrainerConfig) *Trainer {
	minObs := cfg.MinObservations
	if minObs <= 0 {
		minObs = MinTrainingObservations
	}
	return &Trainer{
		logger: cfg.Logger,
		minObs: minObs,
	}
}

// TrainAll fits one model per distinct city, in dataset encounter order.
// Cities with too little data, or whose fit fails, are logged and
// excluded from the result.
func (t *Trainer) TrainAll(ctx context.Context, readings []dataset.Reading) map[string]*Model {
	models := make(map[string]*Model)

	for _, city := range dataset.Cities(readings) {
		if err := ctx.Err(); err != nil {
			t.logger.Warn().Err(err).Msg("training cancelled")
			return models
		}

		series, err := dataset.PrepareSeries(readings, city)
		if err != nil {
			t.logger.Error().Err(err).Str("city", city).Msg("failed to prepare series")
			continue
		}

		if len(series) < t.minObs {
			t.logger.Warn().
				Str("city", city).
				Int("observations", len(series)).
				Int("required", t.minObs).
				Err(ErrInsufficientData).
				Msg("skipping city")
			continue
		}

		model, err := Fit(series)
		if err != nil {
			t.logger.Error().Err(err).Str("city", city).Msg("failed to fit model")
			continue
		}

		models[city] = model
		t.logger.Info().
			Str("city", city).
			Int("observations", len(series)).
			Float64("trend_slope", model.TrendSlope).
			Time("last_observation", model.LastTimestamp).
			Msg("model trained")
	}

	return models
}

// ForecastAll generates an annotated hourly forecast for every trained
// model. days must be positive; callers validate it at the edge.
func (t *Trainer) ForecastAll(models map[string]*Model, days int) map[string][]Row {
	forecasts := make(map[string][]Row, len(models))
	for city, model := range models {
		rows, err := Forecast(model, days)
		if err != nil {
			t.logger.Error().Err(err).Str("city", city).Msg("failed to forecast")
			continue
		}
		forecasts[city] = rows
	}
	return forecasts
}

// Forecast predicts the next days*24 hours from a fitted model and
// annotates each prediction with its AQI score and category. Predictions
// at or before the model's last observation are dropped.
func Forecast(model *Model, days int) ([]Row, error) {
	timestamps := model.FutureTimestamps(days)
	predictions, err := model.Predict(timestamps)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(predictions))
	for _, p := range predictions {
		if !p.Timestamp.After(model.LastTimestamp) {
			continue
		}
		rows = append(rows, annotate(p))
	}
	return rows, nil
}
