package broker

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	heartbeat   = 600 * time.Second
	dialTimeout = 30 * time.Second
)

// Channel is the subset of *amqp.Channel the publisher relies on.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// Connection is a broker session able to open channels.
type Connection interface {
	Channel() (Channel, error)
	IsClosed() bool
	Close() error
}

// Dialer opens a new broker session.
type Dialer func(ctx context.Context) (Connection, error)

// AMQPDialer dials RabbitMQ at uri with the heartbeat and dial timeout the
// monitor has always used.
func AMQPDialer(uri, connectionName string) Dialer {
	return func(ctx context.Context) (Connection, error) {
		props := amqp.NewConnectionProperties()
		if connectionName != "" {
			props.SetClientConnectionName(connectionName)
		}
		conn, err := amqp.DialConfig(uri, amqp.Config{
			Heartbeat:  heartbeat,
			Locale:     "en_US",
			Dial:       amqp.DefaultDial(dialTimeout),
			Properties: props,
		})
		if err != nil {
			return nil, err
		}
		return &amqpConnection{conn: conn}, nil
	}
}

type amqpConnection struct {
	conn *amqp.Connection
}

func (c *amqpConnection) Channel() (Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (c *amqpConnection) IsClosed() bool { return c.conn.IsClosed() }
func (c *amqpConnection) Close() error   { return c.conn.Close() }

var _ Channel = (*amqp.Channel)(nil)
