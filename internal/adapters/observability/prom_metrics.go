package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kobidavid/weather-monitoring-system/internal/ports"
)

type PromObs struct {
	log      *zap.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the weather monitor metrics on the default registry.
func NewPromObs(log *zap.Logger) *PromObs {
	return NewPromObsWithRegistry(log, prometheus.DefaultRegisterer)
}

func NewPromObsWithRegistry(log *zap.Logger, reg prometheus.Registerer) *PromObs {
	if log == nil {
		log = zap.NewNop()
	}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}
	cycles := counter(ports.MetricCycles, "Sampling cycles started.")
	skipped := counter(ports.MetricCyclesSkipped, "Scheduler ticks coalesced because a cycle was still running.")
	fetchFailures := counter(ports.MetricFetchFailures, "Cycles that ended without a record.")
	publishFailures := counter(ports.MetricPublishFailures, "Records the broker did not accept.")
	published := counter(ports.MetricPublished, "Records handed to the broker.")
	connectAttempts := counter(ports.MetricConnectAttempts, "Broker dial attempts, successful or not.")

	connected := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: ports.MetricBrokerConnected,
		Help: "1 while the broker session and channel are open.",
	})
	lastTemp := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: ports.MetricLastTemperature,
		Help: "Temperature of the most recently published record.",
	})

	fetchLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ports.MetricFetchLatency,
		Help:    "Provider request latency.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})
	publishLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ports.MetricPublishLatency,
		Help:    "Broker publish latency, including any reconnect.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
	})

	reg.MustRegister(cycles, skipped, fetchFailures, publishFailures, published, connectAttempts,
		connected, lastTemp, fetchLatency, publishLatency)

	return &PromObs{
		log: log,
		counters: map[string]prometheus.Counter{
			ports.MetricCycles:          cycles,
			ports.MetricCyclesSkipped:   skipped,
			ports.MetricFetchFailures:   fetchFailures,
			ports.MetricPublishFailures: publishFailures,
			ports.MetricPublished:       published,
			ports.MetricConnectAttempts: connectAttempts,
		},
		gauges: map[string]prometheus.Gauge{
			ports.MetricBrokerConnected: connected,
			ports.MetricLastTemperature: lastTemp,
		},
		histos: map[string]prometheus.Observer{
			ports.MetricFetchLatency:   fetchLatency,
			ports.MetricPublishLatency: publishLatency,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.log.Info(msg, zapFields(fields)...)
}

func (p *PromObs) LogWarn(msg string, fields ...ports.Field) {
	p.log.Warn(msg, zapFields(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, append(zapFields(fields), zap.String("severity", "critical"), zap.Error(err))...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func zapFields(fields []ports.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+1)
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
