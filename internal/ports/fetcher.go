package ports

import (
	"context"

	"github.com/kobidavid/weather-monitoring-system/internal/domain"
)

// Fetcher retrieves one point-in-time record from the data provider. Errors
// are *domain.FetchError values; implementations never retry.
type Fetcher interface {
	Fetch(ctx context.Context) (*domain.WeatherRecord, error)
	Location() string
}
