package weathermon

import (
	"github.com/kobidavid/weather-monitoring-system/internal/app/config"
	"github.com/kobidavid/weather-monitoring-system/internal/ports"
)

// Config re-exports the root configuration struct so embedders can construct
// or modify it programmatically.
type Config = config.Config

type (
	// Policy controls cadence, request timeout and broker retry budget.
	Policy = ports.Policy
	// ProviderConfig points at the weather provider.
	ProviderConfig = config.ProviderConfig
	// BrokerConfig locates the RabbitMQ queue.
	BrokerConfig = config.BrokerConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// LogConfig sets the log level.
	LogConfig = config.LogConfig
)

// LoadConfig reads CONFIG_FILE (optional) and the environment.
func LoadConfig() (*Config, error) {
	return config.Load()
}

// LoadConfigFrom is LoadConfig with an explicit YAML path.
func LoadConfigFrom(path string) (*Config, error) {
	return config.LoadFrom(path)
}
