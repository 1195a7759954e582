package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// WeatherRecord is the canonical unit of weather telemetry produced by one
// sampling cycle. It is built once, never mutated and published as JSON.
type WeatherRecord struct {
	CapturedAtEpochMillis int64  `json:"captured_at_epoch_millis"`
	CapturedAt            string `json:"captured_at"`

	LocationName string `json:"location_name"`
	CountryCode  string `json:"country_code"`

	TemperatureC Float `json:"temperature_c"`
	FeelsLikeC   Float `json:"feels_like_c"`
	TempMinC     Float `json:"temp_min_c"`
	TempMaxC     Float `json:"temp_max_c"`
	PressureHPa  int64 `json:"pressure_hpa"`
	HumidityPct  int64 `json:"humidity_pct"`

	Condition            string `json:"condition"`
	ConditionDescription string `json:"condition_description"`

	WindSpeedMPS     Float `json:"wind_speed_mps"`
	WindDirectionDeg int64 `json:"wind_direction_deg"`
	CloudCoverPct    int64 `json:"cloud_cover_pct"`
	VisibilityM      int64 `json:"visibility_m"`

	SunriseEpoch int64 `json:"sunrise_epoch"`
	SunsetEpoch  int64 `json:"sunset_epoch"`

	Rain1hMM *Float `json:"rain_1h_mm,omitempty"`
	Snow1hMM *Float `json:"snow_1h_mm,omitempty"`
}

// CapturedTime returns the capture instant.
func (r *WeatherRecord) CapturedTime() time.Time {
	return time.UnixMilli(r.CapturedAtEpochMillis).UTC()
}

// Float is a float64 that always encodes with a fractional part, so 20 goes
// over the wire as 20.0 and consumers keep seeing a float.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("unsupported float value %v", v)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return []byte(s), nil
}

func floatPtr(v float64) *Float {
	f := Float(v)
	return &f
}

// isoMillis is RFC 3339 with a fixed millisecond fraction.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"
