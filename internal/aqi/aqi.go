// Package aqi converts PM2.5 concentrations to US EPA Air Quality Index
// categories and scores.
package aqi

import "math"

// Category represents an AQI health category.
type Category string

const (
	CategoryUnknown            Category = "Unknown"
	CategoryGood               Category = "Good"
	CategoryModerate           Category = "Moderate"
	CategoryUnhealthySensitive Category = "Unhealthy for Sensitive Groups"
	CategoryUnhealthy          Category = "Unhealthy"
	CategoryVeryUnhealthy      Category = "Very Unhealthy"
	CategoryHazardous          Category = "Hazardous"
)

// Breakpoint maps a PM2.5 concentration range to an AQI range.
type Breakpoint struct {
	PM25Low  float64
	PM25High float64
	AQILow   int
	AQIHigh  int
}

// breakpoints is the US EPA PM2.5 breakpoint table (24-hour average).
// Concentrations above the last range saturate at an AQI of 500.
var breakpoints = []Breakpoint{
	{0.0, 12.0, 0, 50},
	{12.1, 35.4, 51, 100},
	{35.5, 55.4, 101, 150},
	{55.5, 150.4, 151, 200},
	{150.5, 250.4, 201, 300},
	{250.5, 500.4, 301, 500},
}

// MaxValue is the AQI ceiling for concentrations above the last breakpoint.
const MaxValue = 500

// CategoryFor returns the health category for a PM2.5 concentration in µg/m³.
// NaN or negative concentrations map to CategoryUnknown.
func CategoryFor(pm25 float64) Category {
	switch {
	case math.IsNaN(pm25) || pm25 < 0:
		return CategoryUnknown
	case pm25 <= 12.0:
		return CategoryGood
	case pm25 <= 35.4:
		return CategoryModerate
	case pm25 <= 55.4:
		return CategoryUnhealthySensitive
	case pm25 <= 150.4:
		return CategoryUnhealthy
	case pm25 <= 250.4:
		return CategoryVeryUnhealthy
	default:
		return CategoryHazardous
	}
}

// Value returns the numeric AQI score for a PM2.5 concentration in µg/m³,
// interpolated linearly within the breakpoint range that contains it.
// The second return is false when no score can be computed: NaN or negative
// input, or a concentration falling in the gap between two ranges.
// Concentrations above 500.4 saturate at MaxValue.
func Value(pm25 float64) (int, bool) {
	if math.IsNaN(pm25) || pm25 < 0 {
		return 0, false
	}

	for _, bp := range breakpoints {
		if pm25 >= bp.PM25Low && pm25 <= bp.PM25High {
			span := bp.PM25High - bp.PM25Low
			score := float64(bp.AQIHigh-bp.AQILow)/span*(pm25-bp.PM25Low) + float64(bp.AQILow)
			return int(math.Round(score)), true
		}
	}

	if pm25 > breakpoints[len(breakpoints)-1].PM25High {
		return MaxValue, true
	}

	// Gap between two breakpoint ranges, e.g. 12.05.
	return 0, false
}

// Breakpoints returns a copy of the breakpoint table.
func Breakpoints() []Breakpoint {
	out := make([]Breakpoint, len(breakpoints))
	copy(out, breakpoints)
	return out
}
