package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/kobidavid/weather-monitoring-system/internal/ports"
)

// CycleFunc is one unit of scheduled work.
type CycleFunc func(ctx context.Context)

// Scheduler fires a cycle immediately and then on every interval tick. At
// most one cycle runs at a time: a tick that finds the slot taken is dropped
// and counted. A running cycle is not interrupted by Run's context; Run
// returns only after it finishes.
type Scheduler struct {
	interval time.Duration
	cycle    CycleFunc
	obs      ports.Observability

	slot chan struct{}
	wg   sync.WaitGroup
}

// DefaultInterval is used when NewScheduler gets a non-positive interval.
const DefaultInterval = 10 * time.Minute

func NewScheduler(interval time.Duration, cycle CycleFunc, obs ports.Observability) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		interval: interval,
		cycle:    cycle,
		obs:      obs,
		slot:     make(chan struct{}, 1),
	}
}

// Run blocks until ctx is cancelled and the in-flight cycle, if any, is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.obs.LogInfo("scheduler_started", ports.Field{Key: "interval", Value: s.interval.String()})

	s.trigger(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.obs.LogInfo("scheduler_stopping")
			s.wg.Wait()
			s.obs.LogInfo("scheduler_stopped")
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick drops a ticker fire that became ready together with cancellation.
func (s *Scheduler) tick(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	return s.trigger(ctx)
}

// trigger starts a cycle if the slot is free and reports whether it did.
func (s *Scheduler) trigger(ctx context.Context) bool {
	select {
	case s.slot <- struct{}{}:
	default:
		s.obs.IncCounter(ports.MetricCyclesSkipped, 1)
		s.obs.LogWarn("cycle_skipped", ports.Field{Key: "reason", Value: "previous cycle still running"})
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.slot }()
		s.cycle(context.WithoutCancel(ctx))
	}()
	return true
}
