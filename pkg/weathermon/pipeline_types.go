package weathermon

import (
	"github.com/kobidavid/weather-monitoring-system/internal/domain"
	"github.com/kobidavid/weather-monitoring-system/internal/ports"
)

// Record is the canonical weather record published for every successful cycle.
type Record = domain.WeatherRecord

// Float is the JSON float type used by Record; it always encodes a decimal point.
type Float = domain.Float

// Fetcher retrieves one record per call from a weather provider.
type Fetcher = ports.Fetcher

// Publisher hands records to a downstream queue and reports success as a bool.
type Publisher = ports.Publisher

// Observability receives structured logs and metrics from every component.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

// FetchError is returned by fetchers; Kind tells network and payload failures apart.
type FetchError = domain.FetchError

// FetchErrorKind classifies a FetchError.
type FetchErrorKind = domain.FetchErrorKind

const (
	NetworkFailure    = domain.NetworkFailure
	MalformedResponse = domain.MalformedResponse
)

var (
	// ErrConfig wraps every configuration failure.
	ErrConfig = domain.ErrConfig
	// ErrConnection is returned when the broker cannot be reached at startup.
	ErrConnection = domain.ErrConnection
	// ErrPublish marks a record the broker did not accept.
	ErrPublish = domain.ErrPublish
)
