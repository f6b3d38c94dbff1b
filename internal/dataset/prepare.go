package dataset

import (
	"fmt"
	"sort"
	"time"
)

func unixNanoUTC(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

// PrepareSeries builds the hourly training series for one city.
//
// Readings are filtered to the requested city, grouped by exact timestamp
// with the PM2.5 value averaged across duplicates (co-located sensors
// report the same hour independently), and sorted ascending. Returns
// ErrCityNotFound when the city has no readings at all.
func PrepareSeries(readings []Reading, city string) (Series, error) {
	type bucket struct {
		sum   float64
		count int
	}

	buckets := make(map[int64]*bucket)
	for _, r := range readings {
		if r.City != city {
			continue
		}
		key := r.Timestamp.UnixNano()
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		b.sum += r.PM25
		b.count++
	}

	if len(buckets) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCityNotFound, city)
	}

	series := make(Series, 0, len(buckets))
	for key, b := range buckets {
		series = append(series, Point{
			Timestamp: unixNanoUTC(key),
			Value:     b.sum / float64(b.count),
		})
	}

	sort.Slice(series, func(i, j int) bool {
		return series[i].Timestamp.Before(series[j].Timestamp)
	})

	return series, nil
}

// Cities returns the distinct cities in encounter order.
func Cities(readings []Reading) []string {
	seen := make(map[string]struct{})
	var cities []string
	for _, r := range readings {
		if _, ok := seen[r.City]; ok {
			continue
		}
		seen[r.City] = struct{}{}
		cities = append(cities, r.City)
	}
	return cities
}
