package openweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kobidavid/weather-monitoring-system/internal/domain"
	"github.com/kobidavid/weather-monitoring-system/internal/ports"
)

const (
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"
	DefaultTimeout = 10 * time.Second

	maxBodyBytes = 1 << 20
)

// Config captures what is needed to query current conditions for one location.
type Config struct {
	BaseURL  string
	APIKey   string
	Location string
	Timeout  time.Duration
}

func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

func (c *Config) Validate() error {
	if c.APIKey == "" {
		return errors.New("api key is required")
	}
	if c.Location == "" {
		return errors.New("location is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("base url: %w", err)
	}
	return nil
}

// Fetcher issues one GET per call and turns the reply into a WeatherRecord.
type Fetcher struct {
	cfg    Config
	client *http.Client
	obs    ports.Observability
	now    func() time.Time
}

type Option func(*Fetcher)

// WithHTTPClient replaces the default client. Its Timeout is left untouched.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithClock overrides the capture clock.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) {
		if now != nil {
			f.now = now
		}
	}
}

func WithObservability(obs ports.Observability) Option {
	return func(f *Fetcher) {
		f.obs = obs
	}
}

func NewFetcher(cfg Config, opts ...Option) (*Fetcher, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f := &Fetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

func (f *Fetcher) Location() string { return f.cfg.Location }

// Fetch captures the current instant, queries the provider and builds a
// record. Every failure is a *domain.FetchError.
func (f *Fetcher) Fetch(ctx context.Context) (*domain.WeatherRecord, error) {
	capturedAt := f.now()

	reqURL, err := f.requestURL()
	if err != nil {
		return nil, domain.NewNetworkFailure("build request url", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, domain.NewNetworkFailure("build request", f.redact(err))
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := f.client.Do(req)
	if f.obs != nil {
		f.obs.ObserveLatency(ports.MetricFetchLatency, time.Since(start).Seconds())
	}
	if err != nil {
		return nil, domain.NewNetworkFailure("request "+f.cfg.Location, f.redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, domain.NewNetworkFailure(fmt.Sprintf("provider returned %s", resp.Status), nil)
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, domain.NewMalformedResponse("decode body", err)
	}

	return domain.BuildRecord(payload, capturedAt)
}

func (f *Fetcher) requestURL() (string, error) {
	u, err := url.Parse(f.cfg.BaseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("q", f.cfg.Location)
	q.Set("appid", f.cfg.APIKey)
	q.Set("units", "metric")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// redact strips the api key, raw or query-escaped, from errors that echo the
// request URL.
func (f *Fetcher) redact(err error) error {
	if err == nil || f.cfg.APIKey == "" {
		return err
	}
	msg := err.Error()
	clean := msg
	for _, form := range []string{f.cfg.APIKey, url.QueryEscape(f.cfg.APIKey)} {
		clean = strings.ReplaceAll(clean, form, "REDACTED")
	}
	if clean == msg {
		return err
	}
	return &redactedError{msg: clean, err: err}
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

var _ ports.Fetcher = (*Fetcher)(nil)
