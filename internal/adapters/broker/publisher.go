package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/kobidavid/weather-monitoring-system/internal/domain"
	"github.com/kobidavid/weather-monitoring-system/internal/ports"
)

// State is the lifecycle state of the broker connection.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Fatal
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Fatal:
		return "fatal"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	DefaultConnectAttempts = 5
	DefaultRetryDelay      = 5 * time.Second
	contentTypeJSON        = "application/json"
)

type Config struct {
	// Addr is host:port, used for logs only.
	Addr            string
	Queue           string
	ConnectAttempts int
	RetryDelay      time.Duration
	AppID           string
}

func (c *Config) ApplyDefaults() {
	if c.ConnectAttempts <= 0 {
		c.ConnectAttempts = DefaultConnectAttempts
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.AppID == "" {
		c.AppID = "weather-monitor"
	}
}

func (c *Config) Validate() error {
	if c.Queue == "" {
		return errors.New("queue name is required")
	}
	return nil
}

// Publisher owns one broker session and one channel bound to a durable queue.
// Reconnection is lazy: Publish re-runs the connect sequence when the session
// is gone. All state transitions happen under mu.
type Publisher struct {
	cfg  Config
	dial Dialer
	obs  ports.Observability

	sleep func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	state State
	conn  Connection
	ch    Channel
}

type Option func(*Publisher)

func WithObservability(obs ports.Observability) Option {
	return func(p *Publisher) {
		if obs != nil {
			p.obs = obs
		}
	}
}

// WithSleep replaces the wait between connect attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Publisher) {
		if sleep != nil {
			p.sleep = sleep
		}
	}
}

// NewPublisher validates cfg; it does not touch the network. Call Connect
// before the first Publish to fail fast on an unreachable broker.
func NewPublisher(cfg Config, dial Dialer, opts ...Option) (*Publisher, error) {
	if dial == nil {
		return nil, errors.New("dialer is required")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Publisher{
		cfg:   cfg,
		dial:  dial,
		obs:   nopObs{},
		sleep: sleepCtx,
		state: Disconnected,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

func (p *Publisher) Name() string { return "rabbitmq:" + p.cfg.Queue }

func (p *Publisher) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Connect establishes the session at startup. Exhausting the attempt budget
// leaves the publisher in Fatal and returns an error wrapping
// domain.ErrConnection.
func (p *Publisher) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connectLocked(ctx); err != nil {
		p.state = Fatal
		p.obs.LogCritical("broker_connect_exhausted", err,
			ports.Field{Key: "broker", Value: p.cfg.Addr},
			ports.Field{Key: "queue", Value: p.cfg.Queue})
		return err
	}
	return nil
}

// Publish sends rec to the queue as a persistent JSON message. It reconnects
// first when the session is not usable. Errors are logged and reported as
// false; no broker confirmation is awaited.
func (p *Publisher) Publish(ctx context.Context, rec *domain.WeatherRecord) bool {
	if rec == nil {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	defer func() {
		p.obs.ObserveLatency(ports.MetricPublishLatency, time.Since(start).Seconds())
	}()

	if !p.readyLocked() {
		p.obs.LogWarn("broker_reconnecting",
			ports.Field{Key: "broker", Value: p.cfg.Addr},
			ports.Field{Key: "state", Value: p.state.String()})
		if err := p.connectLocked(ctx); err != nil {
			p.state = Disconnected
			p.obs.LogError("broker_publish_failed", err, ports.Field{Key: "queue", Value: p.cfg.Queue})
			return false
		}
	}

	body, err := json.Marshal(rec)
	if err != nil {
		p.obs.LogError("broker_publish_failed", fmt.Errorf("%w: encode record: %v", domain.ErrPublish, err),
			ports.Field{Key: "queue", Value: p.cfg.Queue})
		return false
	}

	msg := amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    rec.CapturedTime(),
		AppId:        p.cfg.AppID,
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, "", p.cfg.Queue, false, false, msg); err != nil {
		p.releaseLocked()
		p.obs.LogError("broker_publish_failed", fmt.Errorf("%w: %v", domain.ErrPublish, err),
			ports.Field{Key: "queue", Value: p.cfg.Queue})
		return false
	}

	p.obs.LogInfo("broker_published",
		ports.Field{Key: "queue", Value: p.cfg.Queue},
		ports.Field{Key: "message_id", Value: msg.MessageId},
		ports.Field{Key: "bytes", Value: len(body)})
	return true
}

// Close shuts the channel and session if open. Failures are ignored.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.releaseLocked()
	return nil
}

func (p *Publisher) readyLocked() bool {
	return p.state == Connected &&
		p.conn != nil && !p.conn.IsClosed() &&
		p.ch != nil && !p.ch.IsClosed()
}

func (p *Publisher) connectLocked(ctx context.Context) error {
	p.releaseLocked()
	p.state = Connecting

	var lastErr error
	attempts := p.cfg.ConnectAttempts
	for attempt := 1; attempt <= attempts; attempt++ {
		p.obs.IncCounter(ports.MetricConnectAttempts, 1)

		lastErr = p.openLocked(ctx)
		if lastErr == nil {
			p.state = Connected
			p.obs.SetGauge(ports.MetricBrokerConnected, 1)
			p.obs.LogInfo("broker_connected",
				ports.Field{Key: "broker", Value: p.cfg.Addr},
				ports.Field{Key: "queue", Value: p.cfg.Queue},
				ports.Field{Key: "attempt", Value: attempt})
			return nil
		}

		p.obs.LogError("broker_connect_failed", lastErr,
			ports.Field{Key: "broker", Value: p.cfg.Addr},
			ports.Field{Key: "attempt", Value: fmt.Sprintf("%d/%d", attempt, attempts)})

		if attempt < attempts {
			if err := p.sleep(ctx, p.cfg.RetryDelay); err != nil {
				lastErr = err
				break
			}
		}
	}

	p.state = Disconnected
	return fmt.Errorf("%w: %s after %d attempts: %v", domain.ErrConnection, p.cfg.Addr, attempts, lastErr)
}

// openLocked runs one attempt: session, channel, durable queue declaration.
func (p *Publisher) openLocked(ctx context.Context) error {
	conn, err := p.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(p.cfg.Queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("declare queue %q: %w", p.cfg.Queue, err)
	}
	p.conn = conn
	p.ch = ch
	return nil
}

func (p *Publisher) releaseLocked() {
	if p.ch != nil && !p.ch.IsClosed() {
		_ = p.ch.Close()
	}
	if p.conn != nil && !p.conn.IsClosed() {
		_ = p.conn.Close()
	}
	p.ch = nil
	p.conn = nil
	if p.state == Connected {
		p.state = Disconnected
	}
	p.obs.SetGauge(ports.MetricBrokerConnected, 0)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type nopObs struct{}

func (nopObs) LogInfo(string, ...ports.Field)            {}
func (nopObs) LogWarn(string, ...ports.Field)            {}
func (nopObs) LogError(string, error, ...ports.Field)    {}
func (nopObs) LogCritical(string, error, ...ports.Field) {}
func (nopObs) IncCounter(string, float64)                {}
func (nopObs) ObserveLatency(string, float64)            {}
func (nopObs) SetGauge(string, float64)                  {}

var _ ports.Publisher = (*Publisher)(nil)
