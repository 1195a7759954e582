package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kobidavid/weather-monitoring-system/internal/domain"
	"github.com/kobidavid/weather-monitoring-system/internal/ports"
)

func TestRunCyclePublishesFetchedRecord(t *testing.T) {
	rec := &domain.WeatherRecord{LocationName: "TestCity", TemperatureC: 20.5, HumidityPct: 65, Condition: "Clear"}
	f := &mockFetcher{rec: rec}
	p := &mockPublisher{ok: true}
	obs := newMockObs()

	out := NewSampler(f, p, obs).RunCycle(context.Background())
	if out != Published {
		t.Fatalf("expected published, got %s", out)
	}
	if len(p.got) != 1 || p.got[0] != rec {
		t.Fatalf("expected the fetched record to be published once, got %d", len(p.got))
	}
	if obs.counter(ports.MetricPublished) != 1 {
		t.Fatalf("expected published counter to be 1")
	}
	if obs.gauge(ports.MetricLastTemperature) != 20.5 {
		t.Fatalf("expected last temperature gauge 20.5, got %v", obs.gauge(ports.MetricLastTemperature))
	}
}

func TestRunCycleFetchFailureSkipsPublish(t *testing.T) {
	for _, err := range []error{
		domain.NewNetworkFailure("request TestCity", nil),
		domain.NewMalformedResponse("missing field main.temp", nil),
	} {
		p := &mockPublisher{ok: true}
		obs := newMockObs()

		out := NewSampler(&mockFetcher{err: err}, p, obs).RunCycle(context.Background())
		if out != FetchFailed {
			t.Fatalf("expected fetch_failed, got %s", out)
		}
		if len(p.got) != 0 {
			t.Fatalf("publisher must not be called after %v", err)
		}
		if obs.counter(ports.MetricFetchFailures) != 1 || len(obs.errorsFor("fetch_failed")) != 1 {
			t.Fatalf("expected fetch failure to be counted and logged")
		}
	}
}

func TestRunCyclePublishFailure(t *testing.T) {
	obs := newMockObs()
	out := NewSampler(&mockFetcher{rec: &domain.WeatherRecord{}}, &mockPublisher{ok: false}, obs).RunCycle(context.Background())
	if out != PublishFailed {
		t.Fatalf("expected publish_failed, got %s", out)
	}
	if obs.counter(ports.MetricPublishFailures) != 1 {
		t.Fatalf("expected publish failure to be counted")
	}
	if obs.counter(ports.MetricPublished) != 0 {
		t.Fatalf("failed publish must not count as published")
	}
}

func TestRunCycleRecoversPanic(t *testing.T) {
	obs := newMockObs()
	out := NewSampler(&mockFetcher{panics: true}, &mockPublisher{ok: true}, obs).RunCycle(context.Background())
	if out != Panicked {
		t.Fatalf("expected panicked, got %s", out)
	}
	if len(obs.errorsFor("cycle_panic")) != 1 {
		t.Fatalf("expected panic to be logged")
	}
}

func TestSchedulerFiresImmediately(t *testing.T) {
	fired := make(chan struct{}, 1)
	s := NewScheduler(time.Hour, func(context.Context) {
		select {
		case fired <- struct{}{}:
		default:
		}
	}, newMockObs())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatalf("expected a cycle before the first tick")
	}
	cancel()
	<-done
}

func TestSchedulerNeverOverlaps(t *testing.T) {
	var running, maxRunning, runs int32
	obs := newMockObs()
	s := NewScheduler(2*time.Millisecond, func(context.Context) {
		n := atomic.AddInt32(&running, 1)
		for {
			m := atomic.LoadInt32(&maxRunning)
			if n <= m || atomic.CompareAndSwapInt32(&maxRunning, m, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&runs, 1)
		atomic.AddInt32(&running, -1)
	}, obs)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	_ = s.Run(ctx)

	if got := atomic.LoadInt32(&maxRunning); got != 1 {
		t.Fatalf("expected at most one concurrent cycle, saw %d", got)
	}
	if atomic.LoadInt32(&runs) < 2 {
		t.Fatalf("expected several cycles, got %d", runs)
	}
	if obs.counter(ports.MetricCyclesSkipped) == 0 {
		t.Fatalf("expected overlapping ticks to be skipped")
	}
}

func TestSchedulerStopWaitsForInFlightCycle(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var cycleCtxErr atomic.Value
	s := NewScheduler(time.Hour, func(ctx context.Context) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			cycleCtxErr.Store(err)
		}
	}, newMockObs())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()

	<-started
	cancel()

	select {
	case <-done:
		t.Fatalf("Run returned while a cycle was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after the cycle finished")
	}
	if v := cycleCtxErr.Load(); v != nil {
		t.Fatalf("cycle context must survive stop, got %v", v)
	}
}

func TestTriggerSkipsWhenSlotTaken(t *testing.T) {
	release := make(chan struct{})
	obs := newMockObs()
	s := NewScheduler(time.Hour, func(context.Context) { <-release }, obs)

	if !s.trigger(context.Background()) {
		t.Fatalf("expected first trigger to start a cycle")
	}
	if s.trigger(context.Background()) {
		t.Fatalf("expected second trigger to be skipped")
	}
	close(release)
	s.wg.Wait()

	if !s.trigger(context.Background()) {
		t.Fatalf("expected slot to be free after the cycle ended")
	}
	s.wg.Wait()
	if obs.counter(ports.MetricCyclesSkipped) != 1 {
		t.Fatalf("expected exactly one skipped tick, got %v", obs.counter(ports.MetricCyclesSkipped))
	}
}

func TestTickAfterCancelDoesNotStartCycle(t *testing.T) {
	var ran atomic.Int32
	obs := newMockObs()
	s := NewScheduler(time.Hour, func(context.Context) { ran.Add(1) }, obs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if s.tick(ctx) {
		t.Fatalf("expected tick after cancellation to be dropped")
	}
	s.wg.Wait()
	if ran.Load() != 0 {
		t.Fatalf("expected no cycle after cancellation, got %d", ran.Load())
	}
	if obs.counter(ports.MetricCyclesSkipped) != 0 {
		t.Fatalf("a dropped tick after stop is not a skipped cycle")
	}

	if !s.tick(context.Background()) {
		t.Fatalf("expected live tick to start a cycle")
	}
	s.wg.Wait()
	if ran.Load() != 1 {
		t.Fatalf("expected one cycle, got %d", ran.Load())
	}
}

type mockFetcher struct {
	rec    *domain.WeatherRecord
	err    error
	panics bool
}

func (m *mockFetcher) Fetch(context.Context) (*domain.WeatherRecord, error) {
	if m.panics {
		panic("boom")
	}
	return m.rec, m.err
}

func (m *mockFetcher) Location() string { return "TestCity" }

type mockPublisher struct {
	ok  bool
	got []*domain.WeatherRecord
}

func (m *mockPublisher) Publish(_ context.Context, rec *domain.WeatherRecord) bool {
	if m.ok {
		m.got = append(m.got, rec)
	}
	return m.ok
}

func (m *mockPublisher) Close() error { return nil }
func (m *mockPublisher) Name() string { return "mock" }

type mockObs struct {
	mu       sync.Mutex
	errors   map[string][]error
	counters map[string]float64
	gauges   map[string]float64
}

func newMockObs() *mockObs {
	return &mockObs{
		errors:   map[string][]error{},
		counters: map[string]float64{},
		gauges:   map[string]float64{},
	}
}

func (m *mockObs) LogInfo(string, ...ports.Field) {}
func (m *mockObs) LogWarn(string, ...ports.Field) {}

func (m *mockObs) LogError(msg string, err error, _ ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[msg] = append(m.errors[msg], err)
}

func (m *mockObs) LogCritical(msg string, err error, fields ...ports.Field) {
	m.LogError(msg, err, fields...)
}

func (m *mockObs) IncCounter(name string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += v
}

func (m *mockObs) ObserveLatency(string, float64) {}

func (m *mockObs) SetGauge(name string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = v
}

func (m *mockObs) counter(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

func (m *mockObs) gauge(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gauges[name]
}

func (m *mockObs) errorsFor(msg string) []error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[msg]
}
