// aqictl - air quality pipeline CLI
//
// Usage:
//   aqictl clean --input data/raw --output cleaned.csv
//   aqictl label --input cleaned.csv --output labeled.csv
//   aqictl fetch --output cleaned.csv
//   aqictl forecast --input cleaned.csv --city Lahore --days 7
//   aqictl stats --input cleaned.csv --city Karachi
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/madeeharehan/pakistan-air-quality-project/internal/dataset"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/forecast"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/ingest/openaq"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	app := &cli.App{
		Name:    "aqictl",
		Usage:   "Clean, label and forecast Pakistani PM2.5 readings",
		Version: fmt.Sprintf("%s (built: %s)", version, buildTime),

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"AQI_LOG_LEVEL"},
			},
		},

		Commands: []*cli.Command{
			cleanCommand(),
			labelCommand(),
			fetchCommand(),
			trainCommand(),
			forecastCommand(),
			statsCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(c *cli.Context) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.String("log-level"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func cleanCommand() *cli.Command {
	return &cli.Command{
		Name:  "clean",
		Usage: "Merge and clean a folder of raw CSV exports",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "Folder of raw CSV files",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "cleaned.csv",
				Usage:   "Output CSV path",
			},
		},
		Action: func(c *cli.Context) error {
			log := newLogger(c)

			readings, err := dataset.CleanDir(c.String("input"), log)
			if err != nil {
				return err
			}

			if err := writeReadings(c.String("output"), readings); err != nil {
				return err
			}

			log.Info().
				Int("rows", len(readings)).
				Str("output", c.String("output")).
				Msg("dataset cleaned")
			return nil
		},
	}
}

func labelCommand() *cli.Command {
	return &cli.Command{
		Name:  "label",
		Usage: "Add AQI value and health category columns to a cleaned CSV",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "Cleaned CSV path",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "labeled.csv",
				Usage:   "Output CSV path",
			},
		},
		Action: func(c *cli.Context) error {
			log := newLogger(c)

			readings, err := loadReadings(c.String("input"))
			if err != nil {
				return err
			}

			labeled := dataset.LabelAll(readings)
			if err := writeReadings(c.String("output"), labeled); err != nil {
				return err
			}

			log.Info().
				Int("rows", len(labeled)).
				Str("output", c.String("output")).
				Msg("dataset labeled")
			return nil
		},
	}
}

func fetchCommand() *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Download PM2.5 measurements from OpenAQ",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "api-key",
				Usage:    "OpenAQ API key",
				EnvVars:  []string{"OPENAQ_API_KEY"},
				Required: true,
			},
			&cli.StringFlag{
				Name:  "cities",
				Value: "Lahore,Karachi,Islamabad,Peshawar,Faisalabad",
				Usage: "Comma-separated target cities",
			},
			&cli.IntFlag{
				Name:  "days-back",
				Value: 90,
				Usage: "How many days of history to fetch",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "cleaned.csv",
				Usage:   "Output CSV path",
			},
		},
		Action: func(c *cli.Context) error {
			log := newLogger(c)

			client, err := openaq.NewClient(openaq.Config{
				APIKey:   c.String("api-key"),
				Cities:   splitCities(c.String("cities")),
				DaysBack: c.Int("days-back"),
				Logger:   log,
			})
			if err != nil {
				return err
			}

			readings, err := client.FetchReadings(c.Context)
			if err != nil {
				return err
			}

			if err := writeReadings(c.String("output"), readings); err != nil {
				return err
			}

			log.Info().
				Int("rows", len(readings)).
				Str("output", c.String("output")).
				Msg("download complete")
			return nil
		},
	}
}

func trainCommand() *cli.Command {
	return &cli.Command{
		Name:  "train",
		Usage: "Fit a model for every city in a cleaned CSV",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "Cleaned CSV path",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			log := newLogger(c)

			readings, err := loadReadings(c.String("input"))
			if err != nil {
				return err
			}

			trainer := forecast.NewTrainer(forecast.TrainerConfig{Logger: log})
			models := trainer.TrainAll(c.Context, readings)

			cities, err := dataset.NewInMemoryRepositoryWithReadings(readings).Cities(c.Context)
			if err != nil {
				return err
			}

			for _, city := range cities {
				if model, ok := models[city]; ok {
					log.Info().
						Str("city", city).
						Float64("base", model.State().BaseValue).
						Float64("slope", model.State().TrendSlope).
						Msg("model trained")
				} else {
					log.Warn().Str("city", city).Msg("city skipped")
				}
			}

			log.Info().
				Int("trained", len(models)).
				Int("skipped", len(cities)-len(models)).
				Msg("training complete")
			return nil
		},
	}
}

func forecastCommand() *cli.Command {
	return &cli.Command{
		Name:  "forecast",
		Usage: "Fit a model on a cleaned CSV and print the hourly forecast",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "Cleaned CSV path",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "city",
				Usage:    "City to forecast",
				Required: true,
			},
			&cli.IntFlag{
				Name:    "days",
				Aliases: []string{"d"},
				Value:   forecast.DefaultForecastDays,
				Usage:   "Forecast horizon in days",
			},
		},
		Action: func(c *cli.Context) error {
			readings, err := loadReadings(c.String("input"))
			if err != nil {
				return err
			}

			series, err := dataset.PrepareSeries(readings, c.String("city"))
			if err != nil {
				return err
			}
			if len(series) < forecast.MinTrainingObservations {
				return fmt.Errorf("%s has only %d observations, need at least %d",
					c.String("city"), len(series), forecast.MinTrainingObservations)
			}

			model, err := forecast.Fit(series)
			if err != nil {
				return err
			}

			rows, err := forecast.Forecast(model, c.Int("days"))
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		},
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Print per-city summary statistics for a cleaned CSV",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "Cleaned CSV path",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "city",
				Usage: "Restrict output to one city",
			},
		},
		Action: func(c *cli.Context) error {
			log := newLogger(c)

			readings, err := loadReadings(c.String("input"))
			if err != nil {
				return err
			}

			service := dataset.NewService(dataset.ServiceConfig{
				Repository: dataset.NewInMemoryRepositoryWithReadings(dataset.LabelAll(readings)),
				Logger:     log,
			})

			cities := []string{c.String("city")}
			if c.String("city") == "" {
				cities, err = service.Cities(c.Context)
				if err != nil {
					return err
				}
			}

			stats := make(map[string]*dataset.CityStats, len(cities))
			for _, city := range cities {
				s, err := service.Stats(c.Context, city)
				if err != nil {
					return err
				}
				stats[city] = s
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
}

func loadReadings(path string) ([]dataset.Reading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return dataset.LoadCSV(f)
}

func writeReadings(path string, readings []dataset.Reading) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return dataset.WriteCSV(f, readings)
}

func splitCities(raw string) []string {
	parts := strings.Split(raw, ",")
	cities := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := strings.TrimSpace(p); name != "" {
			cities = append(cities, name)
		}
	}
	return cities
}
