package weathermon

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	base "github.com/kobidavid/weather-monitoring-system/pkg/weathermon"
)

// Re-exported errors for convenience.
var (
	ErrConfig     = base.ErrConfig
	ErrConnection = base.ErrConnection
	ErrPublish    = base.ErrPublish
)

const (
	NetworkFailure    = base.NetworkFailure
	MalformedResponse = base.MalformedResponse
)

// Type aliases so consumers can import github.com/kobidavid/weather-monitoring-system directly.
type (
	Config         = base.Config
	Policy         = base.Policy
	ProviderConfig = base.ProviderConfig
	BrokerConfig   = base.BrokerConfig
	MetricsConfig  = base.MetricsConfig
	LogConfig      = base.LogConfig
	Flow           = base.Flow
	FlowOption     = base.FlowOption
	Runtime        = base.Runtime
	RuntimeOption  = base.RuntimeOption
	Record         = base.Record
	Float          = base.Float
	RecordHandler  = base.RecordHandler
	Fetcher        = base.Fetcher
	Publisher      = base.Publisher
	Observability  = base.Observability
	Field          = base.Field
	FetchError     = base.FetchError
	FetchErrorKind = base.FetchErrorKind
)

// Config helpers.
func LoadConfig() (*Config, error) {
	return base.LoadConfig()
}

func LoadConfigFrom(path string) (*Config, error) {
	return base.LoadConfigFrom(path)
}

// Flow builder helpers.
func Conf(opts ...FlowOption) (*Flow, error) {
	return base.Conf(opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func AtLocation(name string) FlowOption {
	return base.AtLocation(name)
}

func Every(d time.Duration) FlowOption {
	return base.Every(d)
}

func RequestTimeout(d time.Duration) FlowOption {
	return base.RequestTimeout(d)
}

func ViaBroker(host string, port int) FlowOption {
	return base.ViaBroker(host, port)
}

func ToQueue(name string) FlowOption {
	return base.ToQueue(name)
}

func PublishTo(p Publisher) FlowOption {
	return base.PublishTo(p)
}

func OnRecord(name string, fn RecordHandler) FlowOption {
	return base.OnRecord(name, fn)
}

func SampleFrom(src Fetcher) FlowOption {
	return base.SampleFrom(src)
}

func WithRuntimeOptions(opts ...RuntimeOption) FlowOption {
	return base.WithRuntimeOptions(opts...)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithFetcher(f Fetcher) RuntimeOption {
	return base.WithFetcher(f)
}

func WithPublisher(p Publisher) RuntimeOption {
	return base.WithPublisher(p)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithLogger(l *zap.Logger) RuntimeOption {
	return base.WithLogger(l)
}

func WithRegistry(reg *prometheus.Registry) RuntimeOption {
	return base.WithRegistry(reg)
}

// Publisher adapters.
func NewCallbackPublisher(name string, fn RecordHandler) Publisher {
	return base.NewCallbackPublisher(name, fn)
}

func NewChannelPublisher(name string, buffer int) (Publisher, <-chan Record, func()) {
	return base.NewChannelPublisher(name, buffer)
}
