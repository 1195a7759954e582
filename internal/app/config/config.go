package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/kobidavid/weather-monitoring-system/internal/domain"
	"github.com/kobidavid/weather-monitoring-system/internal/ports"
)

// PlaceholderAPIKey is the value shipped in sample env files. It is rejected
// like an unset key.
const PlaceholderAPIKey = "YOUR_API_KEY_HERE"

// FileEnv names the optional YAML file read before environment overrides.
const FileEnv = "CONFIG_FILE"

type Config struct {
	Policy   ports.Policy   `yaml:"policy"`
	Provider ProviderConfig `yaml:"provider"`
	Broker   BrokerConfig   `yaml:"broker"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

type ProviderConfig struct {
	APIKey   string `yaml:"api_key"`
	Location string `yaml:"location"`
	BaseURL  string `yaml:"base_url"`
}

type BrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Queue    string `yaml:"queue"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	VHost    string `yaml:"vhost"`
}

type MetricsConfig struct {
	// Addr is the listen address of /metrics and /healthz; "off" disables it.
	Addr string `yaml:"addr"`
}

// Enabled reports whether the metrics server should be started.
func (m MetricsConfig) Enabled() bool {
	return m.Addr != "" && !strings.EqualFold(m.Addr, "off")
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Defaults applied when neither the file nor the environment sets a value.
const (
	DefaultSampleInterval    = 10 * time.Minute
	DefaultRequestTimeout    = 10 * time.Second
	DefaultConnectAttempts   = 5
	DefaultConnectRetryDelay = 5 * time.Second
	DefaultLocation          = "Tokyo"
	DefaultBaseURL           = "https://api.openweathermap.org/data/2.5/weather"
	DefaultBrokerHost        = "rabbitmq"
	DefaultBrokerPort        = 5672
	DefaultQueue             = "weather_data"
	DefaultMetricsAddr       = ":9100"
)

// envBindings maps config keys to the environment variables that override them.
// Format: []{configKey, envVar}
var envBindings = [][2]string{
	{"provider.api_key", "OPENWEATHER_API_KEY"},
	{"provider.location", "CITY_NAME"},
	{"provider.base_url", "OPENWEATHER_BASE_URL"},
	{"broker.host", "RABBITMQ_HOST"},
	{"broker.port", "RABBITMQ_PORT"},
	{"broker.queue", "RABBITMQ_QUEUE"},
	{"broker.user", "RABBITMQ_USER"},
	{"broker.password", "RABBITMQ_PASSWORD"},
	{"broker.vhost", "RABBITMQ_VHOST"},
	{"policy.sample_interval", "SAMPLE_INTERVAL"},
	{"policy.request_timeout", "REQUEST_TIMEOUT"},
	{"policy.connect_attempts", "CONNECT_ATTEMPTS"},
	{"policy.connect_retry_delay", "CONNECT_RETRY_DELAY"},
	{"metrics.addr", "METRICS_ADDR"},
	{"log.level", "LOG_LEVEL"},
}

// Load reads CONFIG_FILE (if set), applies environment overrides and defaults,
// and validates the result. All failures wrap domain.ErrConfig.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv(FileEnv))
}

// LoadFrom is Load with an explicit YAML path; an empty path skips the file.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("policy.sample_interval", DefaultSampleInterval)
	v.SetDefault("policy.request_timeout", DefaultRequestTimeout)
	v.SetDefault("policy.connect_attempts", DefaultConnectAttempts)
	v.SetDefault("policy.connect_retry_delay", DefaultConnectRetryDelay)
	v.SetDefault("provider.location", DefaultLocation)
	v.SetDefault("provider.base_url", DefaultBaseURL)
	v.SetDefault("broker.host", DefaultBrokerHost)
	v.SetDefault("broker.port", DefaultBrokerPort)
	v.SetDefault("broker.queue", DefaultQueue)
	v.SetDefault("broker.user", "guest")
	v.SetDefault("broker.password", "guest")
	v.SetDefault("broker.vhost", "/")
	v.SetDefault("metrics.addr", DefaultMetricsAddr)
	v.SetDefault("log.level", "info")

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", domain.ErrConfig, path, err)
		}
	}

	if err := bindEnvVars(v, envBindings); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfig, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
	}); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func bindEnvVars(v *viper.Viper, bindings [][2]string) error {
	for _, b := range bindings {
		if err := v.BindEnv(b[0], b[1]); err != nil {
			return fmt.Errorf("bind %s: %w", b[1], err)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Policy.SampleInterval == 0 {
		c.Policy.SampleInterval = DefaultSampleInterval
	}
	if c.Policy.RequestTimeout == 0 {
		c.Policy.RequestTimeout = DefaultRequestTimeout
	}
	if c.Policy.ConnectAttempts == 0 {
		c.Policy.ConnectAttempts = DefaultConnectAttempts
	}
	if c.Policy.ConnectRetryDelay == 0 {
		c.Policy.ConnectRetryDelay = DefaultConnectRetryDelay
	}
	if c.Provider.Location == "" {
		c.Provider.Location = DefaultLocation
	}
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = DefaultBaseURL
	}
	if c.Broker.Host == "" {
		c.Broker.Host = DefaultBrokerHost
	}
	if c.Broker.Port == 0 {
		c.Broker.Port = DefaultBrokerPort
	}
	if c.Broker.Queue == "" {
		c.Broker.Queue = DefaultQueue
	}
	if c.Broker.User == "" {
		c.Broker.User = "guest"
	}
	if c.Broker.Password == "" {
		c.Broker.Password = "guest"
	}
	if c.Broker.VHost == "" {
		c.Broker.VHost = "/"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = DefaultMetricsAddr
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) validate() error {
	key := strings.TrimSpace(c.Provider.APIKey)
	if key == "" || key == PlaceholderAPIKey {
		return fmt.Errorf("%w: OPENWEATHER_API_KEY is not set (get one at https://openweathermap.org/api)", domain.ErrConfig)
	}
	if _, err := url.Parse(c.Provider.BaseURL); err != nil {
		return fmt.Errorf("%w: provider base url: %v", domain.ErrConfig, err)
	}
	if c.Broker.Port <= 0 || c.Broker.Port > 65535 {
		return fmt.Errorf("%w: broker port %d out of range", domain.ErrConfig, c.Broker.Port)
	}
	if c.Policy.SampleInterval < 0 || c.Policy.RequestTimeout < 0 || c.Policy.ConnectRetryDelay < 0 {
		return fmt.Errorf("%w: durations must not be negative", domain.ErrConfig)
	}
	if c.Policy.ConnectAttempts < 1 {
		return fmt.Errorf("%w: connect attempts must be >= 1", domain.ErrConfig)
	}
	return nil
}

// BrokerURL renders the AMQP URI for the configured broker.
func (c *Config) BrokerURL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.Broker.User, c.Broker.Password),
		Host:   net.JoinHostPort(c.Broker.Host, strconv.Itoa(c.Broker.Port)),
		Path:   "/" + strings.TrimPrefix(c.Broker.VHost, "/"),
	}
	return u.String()
}

// BrokerAddr is host:port, safe for logs.
func (c *Config) BrokerAddr() string {
	return net.JoinHostPort(c.Broker.Host, strconv.Itoa(c.Broker.Port))
}

// Redacted returns a copy with the API key and broker password masked.
func (c *Config) Redacted() Config {
	out := *c
	if out.Provider.APIKey != "" {
		out.Provider.APIKey = "REDACTED"
	}
	if out.Broker.Password != "" {
		out.Broker.Password = "REDACTED"
	}
	return out
}

// WriteYAML writes the redacted effective configuration in the CONFIG_FILE format.
func (c *Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c.Redacted()); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

// IsConfigError reports whether err came from configuration loading.
func IsConfigError(err error) bool {
	return errors.Is(err, domain.ErrConfig)
}

// Validate fills defaults and checks a programmatically built Config.
func (c *Config) Validate() error {
	c.applyDefaults()
	return c.validate()
}
