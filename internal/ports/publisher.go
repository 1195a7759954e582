package ports

import (
	"context"

	"github.com/kobidavid/weather-monitoring-system/internal/domain"
)

// Publisher hands records to the downstream queue. Publish reports success as
// a bool; failures are logged by the implementation and never returned.
type Publisher interface {
	Publish(ctx context.Context, rec *domain.WeatherRecord) bool
	Close() error
	Name() string
}
