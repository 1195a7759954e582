package weathermon

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Flow is one weather feed described in domain terms: which location is
// sampled, how often, and which queue or handler receives the records.
// Options rewrite a private copy of the configuration, so the Config a Flow
// was built from is never modified.
//
//	flow, err := weathermon.Conf(
//		weathermon.AtLocation("Haifa"),
//		weathermon.Every(5*time.Minute),
//		weathermon.OnRecord("stdout", print),
//	)
type Flow struct {
	cfg  Config
	opts []RuntimeOption
	err  error
}

// FlowOption adjusts a Flow before its runtime is built.
type FlowOption func(*Flow)

// Conf loads configuration from CONFIG_FILE and the environment and applies
// opts on top of it.
func Conf(opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromConfig starts a Flow from an in-memory Config. The first invalid
// option is reported here as an ErrConfig.
func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	f := &Flow{cfg: *cfg}
	for _, opt := range opts {
		if opt != nil && f.err == nil {
			opt(f)
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f, nil
}

// Config returns the flow's effective configuration.
func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return &f.cfg
}

// Build validates the effective configuration and wires a Runtime for it.
func (f *Flow) Build() (*Runtime, error) {
	if f == nil {
		return nil, fmt.Errorf("flow is nil")
	}
	cfg := f.cfg
	return NewRuntime(&cfg, f.opts...)
}

// Run builds the runtime and samples until ctx is cancelled.
func (f *Flow) Run(ctx context.Context) error {
	rt, err := f.Build()
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

// Once builds the runtime, samples the location a single time and publishes
// the record.
func (f *Flow) Once(ctx context.Context) error {
	rt, err := f.Build()
	if err != nil {
		return err
	}
	return rt.RunOnce(ctx)
}

func (f *Flow) reject(format string, args ...any) {
	if f.err == nil {
		f.err = fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
	}
}

// AtLocation samples the named city instead of CITY_NAME.
func AtLocation(name string) FlowOption {
	return func(f *Flow) {
		name = strings.TrimSpace(name)
		if name == "" {
			f.reject("location must not be empty")
			return
		}
		f.cfg.Provider.Location = name
	}
}

// Every sets the sampling interval.
func Every(d time.Duration) FlowOption {
	return func(f *Flow) {
		if d <= 0 {
			f.reject("sample interval must be positive, got %s", d)
			return
		}
		f.cfg.Policy.SampleInterval = d
	}
}

// RequestTimeout bounds each provider call.
func RequestTimeout(d time.Duration) FlowOption {
	return func(f *Flow) {
		if d <= 0 {
			f.reject("request timeout must be positive, got %s", d)
			return
		}
		f.cfg.Policy.RequestTimeout = d
	}
}

// ViaBroker points the RabbitMQ publisher at host:port.
func ViaBroker(host string, port int) FlowOption {
	return func(f *Flow) {
		if strings.TrimSpace(host) == "" || port <= 0 || port > 65535 {
			f.reject("invalid broker address %q:%d", host, port)
			return
		}
		f.cfg.Broker.Host = host
		f.cfg.Broker.Port = port
	}
}

// ToQueue publishes into the named durable queue.
func ToQueue(name string) FlowOption {
	return func(f *Flow) {
		if strings.TrimSpace(name) == "" {
			f.reject("queue name must not be empty")
			return
		}
		f.cfg.Broker.Queue = name
	}
}

// PublishTo sends records to p instead of RabbitMQ.
func PublishTo(p Publisher) FlowOption {
	return func(f *Flow) {
		if p == nil {
			f.reject("publisher must not be nil")
			return
		}
		f.opts = append(f.opts, WithPublisher(p))
	}
}

// OnRecord hands every record to fn instead of RabbitMQ.
func OnRecord(name string, fn RecordHandler) FlowOption {
	return func(f *Flow) {
		if fn == nil {
			f.reject("record handler must not be nil")
			return
		}
		f.opts = append(f.opts, WithPublisher(NewCallbackPublisher(name, fn)))
	}
}

// SampleFrom reads weather from src instead of OpenWeatherMap.
func SampleFrom(src Fetcher) FlowOption {
	return func(f *Flow) {
		if src == nil {
			f.reject("fetcher must not be nil")
			return
		}
		f.opts = append(f.opts, WithFetcher(src))
	}
}

// WithRuntimeOptions passes lower-level options (logger, registry,
// observability) through to NewRuntime.
func WithRuntimeOptions(opts ...RuntimeOption) FlowOption {
	return func(f *Flow) {
		for _, opt := range opts {
			if opt != nil {
				f.opts = append(f.opts, opt)
			}
		}
	}
}
