package weathermon

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/kobidavid/weather-monitoring-system/internal/adapters/broker"
	"github.com/kobidavid/weather-monitoring-system/internal/adapters/openweather"
)

// memChannel records publishes in place of a RabbitMQ channel.
type memChannel struct {
	mu        sync.Mutex
	closed    bool
	declared  map[string]bool
	keys      []string
	published []amqp.Publishing
	notify    chan struct{}
}

func (c *memChannel) QueueDeclare(name string, durable, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.declared[name] = durable
	return amqp.Queue{Name: name}, nil
}

func (c *memChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.mu.Lock()
	c.keys = append(c.keys, exchange+"/"+key)
	c.published = append(c.published, msg)
	c.mu.Unlock()
	select {
	case c.notify <- struct{}{}:
	default:
	}
	return nil
}

func (c *memChannel) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *memChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *memChannel) messages() []amqp.Publishing {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]amqp.Publishing(nil), c.published...)
}

type memConn struct {
	mu     sync.Mutex
	closed bool
	ch     *memChannel
}

func (c *memConn) Channel() (broker.Channel, error) { return c.ch, nil }

func (c *memConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *memConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func TestCycleFromProviderToQueue(t *testing.T) {
	srv := providerServer(t)
	cfg := testConfig(srv.URL)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	fetcher, err := openweather.NewFetcher(openweather.Config{
		BaseURL:  cfg.Provider.BaseURL,
		APIKey:   cfg.Provider.APIKey,
		Location: cfg.Provider.Location,
		Timeout:  cfg.Policy.RequestTimeout,
	})
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}

	ch := &memChannel{declared: map[string]bool{}, notify: make(chan struct{}, 1)}
	conn := &memConn{ch: ch}
	pub, err := broker.NewPublisher(broker.Config{
		Addr:            cfg.BrokerAddr(),
		Queue:           cfg.Broker.Queue,
		ConnectAttempts: 1,
	}, func(context.Context) (broker.Connection, error) { return conn, nil })
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}

	rt, err := NewRuntime(cfg, WithFetcher(fetcher), WithPublisher(pub), WithLogger(zap.NewNop()))
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	if err := rt.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-ch.notify:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for the first record")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	msgs := ch.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected exactly one publish, got %d", len(msgs))
	}
	if durable, ok := ch.declared["weather_data"]; !ok || !durable {
		t.Fatalf("expected durable weather_data queue, got %v", ch.declared)
	}
	if ch.keys[0] != "/weather_data" {
		t.Fatalf("expected default exchange routed to weather_data, got %s", ch.keys[0])
	}

	msg := msgs[0]
	if msg.DeliveryMode != amqp.Persistent || msg.ContentType != "application/json" {
		t.Fatalf("unexpected message properties: mode=%d type=%s", msg.DeliveryMode, msg.ContentType)
	}

	var body map[string]any
	if err := json.Unmarshal(msg.Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["location_name"] != "TestCity" || body["condition"] != "Clear" {
		t.Fatalf("unexpected body: %s", msg.Body)
	}
	if body["temperature_c"] != 20.5 || body["humidity_pct"] != float64(65) {
		t.Fatalf("unexpected readings: %s", msg.Body)
	}
	if !conn.IsClosed() {
		t.Fatalf("expected Shutdown to close the broker session")
	}
}
