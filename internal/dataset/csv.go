package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// CSV cleaning errors.
var (
	ErrMissingColumns = errors.New("missing required columns")
	ErrNoValidFiles   = errors.New("no valid csv files found")
)

// Raw exports disagree on timestamp formatting; try the common layouts.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// Upper and lower sanity bounds for a PM2.5 concentration in µg/m³.
// Values at or outside these bounds are dropped during cleaning.
const (
	minValidPM25 = 0.0
	maxValidPM25 = 1000.0
)

// ValidPM25 reports whether a concentration passes the cleaning bounds.
// Sensor error sentinels (negative values such as -999) and physically
// implausible readings fail it; every path that feeds the repository
// must filter with it.
func ValidPM25(pm25 float64) bool {
	return pm25 > minValidPM25 && pm25 < maxValidPM25
}

// LoadCSV reads cleaned (or labeled) readings from r.
//
// Column headers are normalized: surrounding whitespace stripped,
// lowercased, spaces replaced with underscores. The city, datetime and
// pm25_value columns are required; aqi_value and aqi_category are carried
// through when present. Rows with unparseable timestamps or values, and
// concentrations outside (0, 1000), are dropped.
func LoadCSV(r io.Reader) ([]Reading, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[normalizeColumn(name)] = i
	}

	cityIdx, cityOK := cols["city"]
	tsIdx, tsOK := cols["datetime"]
	pmIdx, pmOK := cols["pm25_value"]
	if !pmOK {
		// Some raw exports name the concentration column plainly.
		pmIdx, pmOK = cols["pm25"]
	}
	if !cityOK || !tsOK || !pmOK {
		return nil, fmt.Errorf("%w: need city, datetime, pm25_value", ErrMissingColumns)
	}

	aqiValIdx, hasAQIVal := cols["aqi_value"]
	aqiCatIdx, hasAQICat := cols["aqi_category"]

	var readings []Reading
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv record: %w", err)
		}
		if len(record) <= cityIdx || len(record) <= tsIdx || len(record) <= pmIdx {
			continue
		}

		ts, ok := parseTimestamp(record[tsIdx])
		if !ok {
			continue
		}
		pm25, err := strconv.ParseFloat(strings.TrimSpace(record[pmIdx]), 64)
		if err != nil {
			continue
		}
		if !ValidPM25(pm25) {
			continue
		}

		reading := Reading{
			City:      strings.TrimSpace(record[cityIdx]),
			Timestamp: ts,
			PM25:      pm25,
		}
		if hasAQIVal && len(record) > aqiValIdx {
			if v, err := strconv.ParseFloat(strings.TrimSpace(record[aqiValIdx]), 64); err == nil {
				reading.AQIValue = &v
			}
		}
		if hasAQICat && len(record) > aqiCatIdx {
			reading.AQICategory = strings.TrimSpace(record[aqiCatIdx])
		}

		readings = append(readings, reading)
	}

	return readings, nil
}

// CleanDir loads every .csv file in dir, cleans each one, and merges the
// results into a single dataset sorted by timestamp. Files missing the
// required columns are skipped with a warning rather than failing the
// whole merge.
func CleanDir(dir string, logger zerolog.Logger) ([]Reading, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input folder: %w", err)
	}

	var merged []Reading
	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		readings, err := loadFile(path)
		if err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("skipping file")
			continue
		}

		logger.Info().Str("file", entry.Name()).Int("rows", len(readings)).Msg("loaded file")
		merged = append(merged, readings...)
		loaded++
	}

	if loaded == 0 {
		return nil, ErrNoValidFiles
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})

	return merged, nil
}

// WriteCSV writes readings to w. Label columns are included whenever any
// reading carries them.
func WriteCSV(w io.Writer, readings []Reading) error {
	labeled := false
	for _, r := range readings {
		if r.AQIValue != nil || r.AQICategory != "" {
			labeled = true
			break
		}
	}

	cw := csv.NewWriter(w)
	header := []string{"city", "datetime", "pm25_value"}
	if labeled {
		header = append(header, "aqi_value", "aqi_category")
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range readings {
		record := []string{
			r.City,
			r.Timestamp.UTC().Format(time.RFC3339),
			strconv.FormatFloat(r.PM25, 'f', -1, 64),
		}
		if labeled {
			aqiVal := ""
			if r.AQIValue != nil {
				aqiVal = strconv.FormatFloat(*r.AQIValue, 'f', -1, 64)
			}
			record = append(record, aqiVal, r.AQICategory)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func loadFile(path string) ([]Reading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadCSV(f)
}

func normalizeColumn(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

func parseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
