package weathermon

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestConfFromConfigRewritesWeatherSettings(t *testing.T) {
	cfg := testConfig("http://provider.invalid")

	flow, err := ConfFromConfig(cfg,
		AtLocation("Haifa"),
		Every(30*time.Second),
		RequestTimeout(2*time.Second),
		ViaBroker("mq.internal", 5673),
		ToQueue("readings"),
	)
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}

	got := flow.Config()
	if got.Provider.Location != "Haifa" || got.Policy.SampleInterval != 30*time.Second || got.Policy.RequestTimeout != 2*time.Second {
		t.Fatalf("unexpected provider/policy: %+v %+v", got.Provider, got.Policy)
	}
	if got.Broker.Host != "mq.internal" || got.Broker.Port != 5673 || got.Broker.Queue != "readings" {
		t.Fatalf("unexpected broker: %+v", got.Broker)
	}
	if cfg.Provider.Location != "TestCity" || cfg.Policy.SampleInterval != time.Hour {
		t.Fatalf("source config must not be modified, got %+v", cfg)
	}

	rt, err := flow.Build()
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if rt.fetcher.Location() != "Haifa" {
		t.Fatalf("expected default fetcher to sample Haifa, got %s", rt.fetcher.Location())
	}
	if rt.cfg.BrokerAddr() != "mq.internal:5673" {
		t.Fatalf("unexpected broker addr %s", rt.cfg.BrokerAddr())
	}
}

func TestFlowWiresCustomSourceAndSink(t *testing.T) {
	fetcher := &stubFetcher{}
	pub := &stubPublisher{}

	flow, err := ConfFromConfig(testConfig("http://provider.invalid"),
		SampleFrom(fetcher),
		PublishTo(pub),
		WithRuntimeOptions(WithLogger(zap.NewNop()), WithObservability(&stubObservability{})),
	)
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}
	rt, err := flow.Build()
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if rt.fetcher != fetcher {
		t.Fatalf("expected custom fetcher to be wired")
	}
	if rt.publisher != pub {
		t.Fatalf("expected custom publisher to be wired")
	}
}

func TestFlowRejectsInvalidOptions(t *testing.T) {
	for name, opt := range map[string]FlowOption{
		"empty location": AtLocation("  "),
		"zero interval":  Every(0),
		"zero timeout":   RequestTimeout(-time.Second),
		"bad broker":     ViaBroker("", 5672),
		"bad port":       ViaBroker("mq", 70000),
		"empty queue":    ToQueue(""),
		"nil publisher":  PublishTo(nil),
		"nil handler":    OnRecord("x", nil),
		"nil fetcher":    SampleFrom(nil),
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := ConfFromConfig(testConfig("http://provider.invalid"), opt); !errors.Is(err, ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}

	if _, err := ConfFromConfig(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
	var f *Flow
	if _, err := f.Build(); err == nil {
		t.Fatalf("expected error for nil flow")
	}
}

func TestFlowOnceQueriesConfiguredLocation(t *testing.T) {
	var gotCity string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCity = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, providerBody)
	}))
	defer srv.Close()

	var seen []Record
	flow, err := ConfFromConfig(testConfig(srv.URL),
		AtLocation("Haifa"),
		OnRecord("collect", func(rec Record) error {
			seen = append(seen, rec)
			return nil
		}),
		WithRuntimeOptions(WithLogger(zap.NewNop())),
	)
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}

	if err := flow.Once(context.Background()); err != nil {
		t.Fatalf("Once returned error: %v", err)
	}
	if gotCity != "Haifa" {
		t.Fatalf("expected provider to be queried for Haifa, got %q", gotCity)
	}
	if len(seen) != 1 || seen[0].LocationName != "TestCity" {
		t.Fatalf("expected one record from the provider, got %+v", seen)
	}
}

func TestFlowRunPublishesImmediateCycle(t *testing.T) {
	var seen []Record
	flow, err := ConfFromConfig(testConfig("http://provider.invalid"),
		SampleFrom(&stubFetcher{}),
		OnRecord("collect", func(rec Record) error {
			seen = append(seen, rec)
			return nil
		}),
		WithRuntimeOptions(WithLogger(zap.NewNop()), WithObservability(&stubObservability{})),
	)
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	// Stop immediately; the first cycle still completes against the stubs.
	cancel()

	if err := flow.Run(ctx); err != nil && err != context.Canceled {
		t.Fatalf("Run returned unexpected error: %v", err)
	}
	if len(seen) != 1 || seen[0].LocationName != "Stub" {
		t.Fatalf("expected the immediate cycle to publish one record, got %+v", seen)
	}
}
