package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// BuildRecord maps a decoded provider response onto a WeatherRecord.
// capturedAt must be taken before the provider was called; it is truncated to
// milliseconds so both timestamp fields describe the exact same instant.
// A missing or mistyped required field yields a MalformedResponse error and no
// record.
func BuildRecord(resp map[string]any, capturedAt time.Time) (*WeatherRecord, error) {
	if resp == nil {
		return nil, NewMalformedResponse("empty response", nil)
	}
	millis := capturedAt.UnixMilli()
	r := reader{root: resp}

	rec := &WeatherRecord{
		CapturedAtEpochMillis: millis,
		CapturedAt:            time.UnixMilli(millis).UTC().Format(isoMillis),

		LocationName: r.str("name"),
		CountryCode:  r.str("sys", "country"),

		TemperatureC: Float(r.number("main", "temp")),
		FeelsLikeC:   Float(r.number("main", "feels_like")),
		TempMinC:     Float(r.number("main", "temp_min")),
		TempMaxC:     Float(r.number("main", "temp_max")),
		PressureHPa:  r.integer("main", "pressure"),
		HumidityPct:  r.integer("main", "humidity"),

		Condition:            r.str("weather", "0", "main"),
		ConditionDescription: r.str("weather", "0", "description"),

		WindSpeedMPS:     Float(r.number("wind", "speed")),
		WindDirectionDeg: r.optInt(0, "wind", "deg"),
		CloudCoverPct:    r.integer("clouds", "all"),
		VisibilityM:      r.optInt(0, "visibility"),

		SunriseEpoch: r.integer("sys", "sunrise"),
		SunsetEpoch:  r.integer("sys", "sunset"),
	}

	if _, ok := r.lookup("rain"); ok {
		rec.Rain1hMM = floatPtr(r.optFloat(0, "rain", "1h"))
	}
	if _, ok := r.lookup("snow"); ok {
		rec.Snow1hMM = floatPtr(r.optFloat(0, "snow", "1h"))
	}

	if r.err != nil {
		return nil, r.err
	}
	return rec, nil
}

// reader walks a decoded JSON document and remembers the first failure, so
// BuildRecord can read every field and check once at the end.
type reader struct {
	root any
	err  error
}

func (r *reader) lookup(path ...string) (any, bool) {
	cur := r.root
	for _, key := range path {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[key]
			if !ok || v == nil {
				return nil, false
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}

func (r *reader) fail(path []string, format string, args ...any) {
	if r.err != nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	r.err = NewMalformedResponse(fmt.Sprintf("%s: %s", dotted(path), msg), nil)
}

func (r *reader) str(path ...string) string {
	v, ok := r.lookup(path...)
	if !ok {
		r.fail(path, "required field missing")
		return ""
	}
	s, ok := v.(string)
	if !ok {
		r.fail(path, "expected string, got %T", v)
		return ""
	}
	return s
}

func (r *reader) number(path ...string) float64 {
	v, ok := r.lookup(path...)
	if !ok {
		r.fail(path, "required field missing")
		return 0
	}
	f, ok := toFloat(v)
	if !ok {
		r.fail(path, "expected number, got %T", v)
		return 0
	}
	return f
}

func (r *reader) integer(path ...string) int64 {
	return r.whole(r.number(path...), path)
}

func (r *reader) optFloat(def float64, path ...string) float64 {
	v, ok := r.lookup(path...)
	if !ok {
		return def
	}
	f, ok := toFloat(v)
	if !ok {
		r.fail(path, "expected number, got %T", v)
		return def
	}
	return f
}

func (r *reader) optInt(def int64, path ...string) int64 {
	return r.whole(r.optFloat(float64(def), path...), path)
}

// whole rejects values with a fractional part instead of rounding them.
func (r *reader) whole(f float64, path []string) int64 {
	if f != math.Trunc(f) {
		r.fail(path, "expected integer, got %v", f)
		return 0
	}
	return int64(f)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}

func dotted(path []string) string {
	out := strings.Join(path, ".")
	return strings.ReplaceAll(out, ".0.", "[0].")
}
