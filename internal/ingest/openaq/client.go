// Package openaq fetches hourly PM2.5 measurements for Pakistani cities
// from the OpenAQ v3 API.
package openaq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/madeeharehan/pakistan-air-quality-project/internal/api/middleware"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/dataset"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/provider/resilience"
)

// OpenAQ v3 identifiers for the data we pull.
const (
	// CountryPakistan is the OpenAQ country ID for Pakistan.
	CountryPakistan = 109

	// ParameterPM25 is the OpenAQ parameter ID for PM2.5.
	ParameterPM25 = 2
)

const (
	defaultBaseURL  = "https://api.openaq.org/v3"
	defaultDaysBack = 90
	defaultPageSize = 1000

	// maxMeasurementsPerSensor bounds how deep we page into one sensor's
	// history so a single prolific sensor cannot stall a whole refresh.
	maxMeasurementsPerSensor = 20000

	providerName = "openaq"
)

// ErrMissingAPIKey is returned when the client is built without an API key.
var ErrMissingAPIKey = errors.New("openaq api key is required")

// Config holds configuration for the OpenAQ client.
type Config struct {
	// BaseURL overrides the OpenAQ API base URL. Used in tests.
	BaseURL string

	// APIKey is the OpenAQ API key, sent in the X-API-Key header.
	APIKey string

	// Cities are the target city names. Locations are matched to them
	// case-insensitively on locality and location name.
	Cities []string

	// DaysBack is how far back to fetch measurements. Default: 90.
	DaysBack int

	// HTTPClient is the resilient HTTP client to use. When nil a client
	// with default retry and circuit breaker settings is created.
	HTTPClient *resilience.Client

	// Metrics optionally records provider request metrics.
	Metrics *middleware.ProviderMetrics

	// Logger for fetch progress.
	Logger zerolog.Logger
}

// Client fetches PM2.5 readings from OpenAQ.
type Client struct {
	baseURL    string
	apiKey     string
	cities     []string
	daysBack   int
	httpClient *resilience.Client
	metrics    *middleware.ProviderMetrics
	logger     zerolog.Logger
}

// NewClient creates a new OpenAQ client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	daysBack := cfg.DaysBack
	if daysBack <= 0 {
		daysBack = defaultDaysBack
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(providerName))
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		cities:     cfg.Cities,
		daysBack:   daysBack,
		httpClient: httpClient,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}, nil
}

// sensor is one PM2.5 sensor matched to a target city.
type sensor struct {
	ID       int64
	City     string
	Location string
}

// FetchReadings pulls hourly PM2.5 measurements for every matched sensor
// across the configured window. Sensors that fail are logged and skipped;
// a partial result is better than none.
func (c *Client) FetchReadings(ctx context.Context) ([]dataset.Reading, error) {
	sensors, err := c.listSensors(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing openaq locations: %w", err)
	}

	c.logger.Info().Int("sensors", len(sensors)).Msg("matched pm25 sensors")

	end := time.Now().UTC()
	start := end.Add(-time.Duration(c.daysBack) * 24 * time.Hour)

	var readings []dataset.Reading
	for _, s := range sensors {
		if err := ctx.Err(); err != nil {
			return readings, err
		}

		rows, err := c.fetchSensor(ctx, s, start, end)
		if err != nil {
			c.logger.Error().Err(err).
				Str("city", s.City).
				Str("location", s.Location).
				Int64("sensor_id", s.ID).
				Msg("failed to fetch sensor, skipping")
			continue
		}
		readings = append(readings, rows...)
	}
	return readings, nil
}

// listSensors lists Pakistani PM2.5 locations and resolves each matched
// location to its PM2.5 sensor ID.
func (c *Client) listSensors(ctx context.Context) ([]sensor, error) {
	query := url.Values{}
	query.Set("countries_id", strconv.Itoa(CountryPakistan))
	query.Set("parameters_id", strconv.Itoa(ParameterPM25))
	query.Set("limit", strconv.Itoa(defaultPageSize))

	body, err := c.get(ctx, "/locations", query, "locations")
	if err != nil {
		return nil, err
	}

	var sensors []sensor
	for _, loc := range gjson.GetBytes(body, "results").Array() {
		name := loc.Get("name").String()
		locality := loc.Get("locality").String()

		city := c.matchCity(locality, name)
		if city == "" {
			continue
		}

		for _, s := range loc.Get("sensors").Array() {
			if s.Get("parameter.name").String() != "pm25" {
				continue
			}
			sensors = append(sensors, sensor{
				ID:       s.Get("id").Int(),
				City:     city,
				Location: name,
			})
			break
		}
	}
	return sensors, nil
}

// fetchSensor pages through one sensor's measurements across the window.
func (c *Client) fetchSensor(ctx context.Context, s sensor, start, end time.Time) ([]dataset.Reading, error) {
	var readings []dataset.Reading

	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("datetime_from", start.Format(time.RFC3339))
		query.Set("datetime_to", end.Format(time.RFC3339))
		query.Set("limit", strconv.Itoa(defaultPageSize))
		query.Set("page", strconv.Itoa(page))

		path := fmt.Sprintf("/sensors/%d/measurements", s.ID)
		body, err := c.get(ctx, path, query, "measurements")
		if err != nil {
			return nil, err
		}

		results := gjson.GetBytes(body, "results").Array()
		if len(results) == 0 {
			break
		}

		for _, m := range results {
			ts, err := time.Parse(time.RFC3339, m.Get("period.datetimeFrom.utc").String())
			if err != nil {
				continue
			}
			// OpenAQ reports sensor faults as negative sentinels (-999);
			// clean them out before they reach the repository.
			pm25 := m.Get("value").Float()
			if !dataset.ValidPM25(pm25) {
				continue
			}
			readings = append(readings, dataset.Reading{
				City:      s.City,
				Timestamp: ts.UTC(),
				PM25:      pm25,
			})
		}

		if len(readings) >= maxMeasurementsPerSensor || len(results) < defaultPageSize {
			break
		}
	}

	c.logger.Debug().
		Str("city", s.City).
		Str("location", s.Location).
		Int("readings", len(readings)).
		Msg("sensor fetched")
	return readings, nil
}

// matchCity maps a location to the first target city whose name appears
// in its locality or location name. Returns "" when nothing matches.
func (c *Client) matchCity(locality, name string) string {
	locality = strings.ToLower(locality)
	name = strings.ToLower(name)
	for _, city := range c.cities {
		lower := strings.ToLower(city)
		if strings.Contains(locality, lower) || strings.Contains(name, lower) {
			return city
		}
	}
	return ""
}

// get performs one authenticated GET against the OpenAQ API.
func (c *Client) get(ctx context.Context, path string, query url.Values, operation string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.RecordRequest(providerName, operation, time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openaq %s returned status %d", path, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
