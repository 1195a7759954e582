package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/kobidavid/weather-monitoring-system/internal/ports"
)

var cliHTTPClient = http.Client{Timeout: 5 * time.Second}

type snapshot struct {
	cycles          float64
	skipped         float64
	published       float64
	fetchFailures   float64
	publishFailures float64
	connected       float64
	lastTemperature float64
}

func fetchSnapshot(ctx context.Context, client *http.Client, url string) (snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return snapshot{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return snapshot{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return snapshot{}, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return readSnapshot(resp.Body)
}

func readSnapshot(r io.Reader) (snapshot, error) {
	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(r)
	if err != nil {
		return snapshot{}, fmt.Errorf("parse metrics: %w", err)
	}

	value := func(name string) float64 {
		mf, ok := families[name]
		if !ok || len(mf.GetMetric()) == 0 {
			return 0
		}
		m := mf.GetMetric()[0]
		switch mf.GetType() {
		case dto.MetricType_COUNTER:
			return m.GetCounter().GetValue()
		case dto.MetricType_GAUGE:
			return m.GetGauge().GetValue()
		default:
			return m.GetUntyped().GetValue()
		}
	}

	return snapshot{
		cycles:          value(ports.MetricCycles),
		skipped:         value(ports.MetricCyclesSkipped),
		published:       value(ports.MetricPublished),
		fetchFailures:   value(ports.MetricFetchFailures),
		publishFailures: value(ports.MetricPublishFailures),
		connected:       value(ports.MetricBrokerConnected),
		lastTemperature: value(ports.MetricLastTemperature),
	}, nil
}

func (s snapshot) format(now time.Time) string {
	broker := "down"
	if s.connected >= 1 {
		broker = "up"
	}
	return fmt.Sprintf("[%s] cycles=%.0f skipped=%.0f published=%.0f fetch_failures=%.0f publish_failures=%.0f broker=%s last_temp_c=%.2f",
		now.Format(time.RFC3339),
		s.cycles, s.skipped, s.published, s.fetchFailures, s.publishFailures, broker, s.lastTemperature)
}
