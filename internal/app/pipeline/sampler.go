package pipeline

import (
	"context"
	"fmt"

	"github.com/kobidavid/weather-monitoring-system/internal/domain"
	"github.com/kobidavid/weather-monitoring-system/internal/ports"
)

// Outcome is how a single sampling cycle ended.
type Outcome int

const (
	Published Outcome = iota
	FetchFailed
	PublishFailed
	Panicked
)

func (o Outcome) String() string {
	switch o {
	case Published:
		return "published"
	case FetchFailed:
		return "fetch_failed"
	case PublishFailed:
		return "publish_failed"
	case Panicked:
		return "panicked"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Sampler runs fetch-then-publish once per call. It never returns an error;
// every failure ends the cycle and is logged.
type Sampler struct {
	fetcher ports.Fetcher
	pub     ports.Publisher
	obs     ports.Observability
}

func NewSampler(f ports.Fetcher, p ports.Publisher, obs ports.Observability) *Sampler {
	return &Sampler{fetcher: f, pub: p, obs: obs}
}

func (s *Sampler) RunCycle(ctx context.Context) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.obs.LogError("cycle_panic", fmt.Errorf("recovered: %v", r),
				ports.Field{Key: "location", Value: s.fetcher.Location()})
			out = Panicked
		}
	}()

	s.obs.IncCounter(ports.MetricCycles, 1)
	s.obs.LogInfo("cycle_started", ports.Field{Key: "location", Value: s.fetcher.Location()})

	rec, err := s.fetcher.Fetch(ctx)
	if err != nil {
		s.obs.IncCounter(ports.MetricFetchFailures, 1)
		s.obs.LogError("fetch_failed", err,
			ports.Field{Key: "location", Value: s.fetcher.Location()},
			ports.Field{Key: "kind", Value: string(domain.KindOf(err))})
		return FetchFailed
	}

	if !s.pub.Publish(ctx, rec) {
		s.obs.IncCounter(ports.MetricPublishFailures, 1)
		s.obs.LogError("publish_failed", fmt.Errorf("%w: %s", domain.ErrPublish, s.pub.Name()),
			ports.Field{Key: "location", Value: rec.LocationName})
		return PublishFailed
	}

	s.obs.IncCounter(ports.MetricPublished, 1)
	s.obs.SetGauge(ports.MetricLastTemperature, float64(rec.TemperatureC))
	s.obs.LogInfo("publish_succeeded",
		ports.Field{Key: "location", Value: rec.LocationName},
		ports.Field{Key: "temperature_c", Value: float64(rec.TemperatureC)},
		ports.Field{Key: "humidity_pct", Value: rec.HumidityPct},
		ports.Field{Key: "condition", Value: rec.Condition},
		ports.Field{Key: "captured_at", Value: rec.CapturedAt})
	return Published
}
