package weathermon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kobidavid/weather-monitoring-system/internal/adapters/broker"
	"github.com/kobidavid/weather-monitoring-system/internal/adapters/observability"
	"github.com/kobidavid/weather-monitoring-system/internal/adapters/openweather"
	"github.com/kobidavid/weather-monitoring-system/internal/app/pipeline"
	"github.com/kobidavid/weather-monitoring-system/internal/ports"
)

const connectionName = "weather-monitor"

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	fetcher       Fetcher
	publisher     Publisher
	observability Observability
	logger        *zap.Logger
	registry      *prometheus.Registry
}

// WithFetcher injects a custom weather source (fixtures, another provider).
func WithFetcher(f Fetcher) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.fetcher = f
	}
}

// WithPublisher injects a custom publisher so records can go anywhere.
func WithPublisher(p Publisher) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.publisher = p
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithLogger replaces the JSON logger built from Config.Log.
func WithLogger(l *zap.Logger) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.logger = l
	}
}

// WithRegistry serves metrics from reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.registry = reg
	}
}

// connector is implemented by publishers that must reach their broker before
// the first cycle.
type connector interface {
	Connect(ctx context.Context) error
}

type stateReporter interface {
	State() broker.State
}

// Runtime wires fetcher → sampler → publisher under the scheduler and serves
// /metrics and /healthz.
type Runtime struct {
	cfg       *Config
	log       *zap.Logger
	obs       ports.Observability
	registry  *prometheus.Registry
	fetcher   ports.Fetcher
	publisher ports.Publisher
	sampler   *pipeline.Sampler

	metricsSrv *http.Server
	metricsLn  net.Listener

	cancel    context.CancelFunc
	schedDone chan struct{}
	closeOnce sync.Once
}

// NewRuntime validates cfg and bootstraps the default adapters (OpenWeatherMap
// fetcher, RabbitMQ publisher, zap + Prometheus observability). Nothing touches
// the network until Start.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	log := overrides.logger
	if log == nil {
		var err error
		log, err = observability.NewLogger(cfg.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("build logger: %w", err)
		}
	}

	reg := overrides.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	obs := overrides.observability
	if obs == nil {
		obs = observability.NewPromObsWithRegistry(log, reg)
	}

	f := overrides.fetcher
	if f == nil {
		var err error
		f, err = openweather.NewFetcher(openweather.Config{
			BaseURL:  cfg.Provider.BaseURL,
			APIKey:   cfg.Provider.APIKey,
			Location: cfg.Provider.Location,
			Timeout:  cfg.Policy.RequestTimeout,
		}, openweather.WithObservability(obs))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
	}

	pub := overrides.publisher
	if pub == nil {
		var err error
		pub, err = broker.NewPublisher(broker.Config{
			Addr:            cfg.BrokerAddr(),
			Queue:           cfg.Broker.Queue,
			ConnectAttempts: cfg.Policy.ConnectAttempts,
			RetryDelay:      cfg.Policy.ConnectRetryDelay,
			AppID:           connectionName,
		}, broker.AMQPDialer(cfg.BrokerURL(), connectionName), broker.WithObservability(obs))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
	}

	return &Runtime{
		cfg:       cfg,
		log:       log,
		obs:       obs,
		registry:  reg,
		fetcher:   f,
		publisher: pub,
		sampler:   pipeline.NewSampler(f, pub, obs),
	}, nil
}

// Start connects the publisher, opens the metrics listener and launches the
// scheduler. It returns once the first cycle has been triggered; call Run to
// block on a context instead. A broker that stays unreachable for the whole
// retry budget yields an error wrapping ErrConnection.
func (r *Runtime) Start(ctx context.Context) error {
	if r == nil {
		return fmt.Errorf("runtime is nil")
	}
	if c, ok := r.publisher.(connector); ok {
		if err := c.Connect(ctx); err != nil {
			return err
		}
	}
	if err := r.startMetrics(); err != nil {
		_ = r.publisher.Close()
		return err
	}

	r.obs.LogInfo("weather_monitor_started",
		ports.Field{Key: "location", Value: r.fetcher.Location()},
		ports.Field{Key: "interval", Value: r.cfg.Policy.SampleInterval.String()},
		ports.Field{Key: "broker", Value: r.cfg.BrokerAddr()},
		ports.Field{Key: "queue", Value: r.cfg.Broker.Queue},
		ports.Field{Key: "publisher", Value: r.publisher.Name()})

	schedCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.schedDone = make(chan struct{})

	sched := pipeline.NewScheduler(r.cfg.Policy.SampleInterval, func(ctx context.Context) {
		r.sampler.RunCycle(ctx)
	}, r.obs)
	go func() {
		defer close(r.schedDone)
		_ = sched.Run(schedCtx)
	}()
	return nil
}

// Run starts the runtime and blocks until ctx is cancelled, then shuts down
// gracefully, letting an in-flight cycle finish.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	r.obs.LogInfo("shutdown_requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), r.shutdownTimeout())
	defer cancel()
	return r.Shutdown(shutdownCtx)
}

// RunOnce performs a single fetch-and-publish cycle and closes the publisher.
func (r *Runtime) RunOnce(ctx context.Context) error {
	if c, ok := r.publisher.(connector); ok {
		if err := c.Connect(ctx); err != nil {
			return err
		}
	}
	defer r.closePublisher()

	switch out := r.sampler.RunCycle(ctx); out {
	case pipeline.Published:
		return nil
	case pipeline.PublishFailed:
		return ErrPublish
	default:
		return fmt.Errorf("cycle ended: %s", out)
	}
}

// Shutdown stops the scheduler, waits for the in-flight cycle, then closes
// the metrics server and the publisher.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var errs []error

	if r.cancel != nil {
		r.cancel()
	}
	if r.schedDone != nil {
		select {
		case <-r.schedDone:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("waiting for in-flight cycle: %w", ctx.Err()))
		}
	}

	if r.metricsSrv != nil {
		if err := r.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}

	r.closePublisher()
	r.obs.LogInfo("weather_monitor_stopped")
	_ = r.log.Sync()

	return errors.Join(errs...)
}

// MetricsAddr is the bound metrics listener address, or "" when disabled.
func (r *Runtime) MetricsAddr() string {
	if r.metricsLn == nil {
		return ""
	}
	return r.metricsLn.Addr().String()
}

func (r *Runtime) closePublisher() {
	r.closeOnce.Do(func() {
		if err := r.publisher.Close(); err != nil {
			r.log.Debug("publisher close failed", zap.Error(err))
		}
	})
}

func (r *Runtime) startMetrics() error {
	if !r.cfg.Metrics.Enabled() {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry}))
	mux.HandleFunc("/healthz", r.healthz)

	ln, err := net.Listen("tcp", r.cfg.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	r.metricsLn = ln
	r.metricsSrv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := r.metricsSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.obs.LogError("metrics_server_exited", err)
		}
	}()
	return nil
}

func (r *Runtime) healthz(w http.ResponseWriter, _ *http.Request) {
	if sr, ok := r.publisher.(stateReporter); ok {
		if st := sr.State(); st != broker.Connected {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("broker " + st.String()))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// shutdownTimeout covers one full cycle: a fetch plus a reconnect sequence.
func (r *Runtime) shutdownTimeout() time.Duration {
	p := r.cfg.Policy
	return p.RequestTimeout + time.Duration(p.ConnectAttempts)*p.ConnectRetryDelay + 5*time.Second
}
