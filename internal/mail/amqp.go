package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// publisher is the subset of *amqp.Channel the transport uses
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// mailJob is the queue payload picked up by the mail worker
type mailJob struct {
	Message
	QueuedAt time.Time `json:"queued_at"`
}

// AMQPTransport hands rendered messages to a RabbitMQ exchange for an
// out-of-process mail worker to deliver.
type AMQPTransport struct {
	conn       *amqp.Connection
	mu         sync.Mutex
	channel    publisher
	exchange   string
	routingKey string
	now        func() time.Time
}

// NewAMQPTransport dials the broker and declares the exchange, queue and binding
func NewAMQPTransport(amqpURL, exchange, queue, routingKey string) (*AMQPTransport, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange, // name
		"direct", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, routingKey, exchange, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue %s: %w", queue, err)
	}

	t := newAMQPTransport(ch, exchange, routingKey)
	t.conn = conn
	return t, nil
}

func newAMQPTransport(ch publisher, exchange, routingKey string) *AMQPTransport {
	return &AMQPTransport{
		channel:    ch,
		exchange:   exchange,
		routingKey: routingKey,
		now:        time.Now,
	}
}

// Send publishes the message as a persistent JSON job
func (t *AMQPTransport) Send(ctx context.Context, msg Message) error {
	now := t.now()
	body, err := json.Marshal(mailJob{Message: msg, QueuedAt: now})
	if err != nil {
		return fmt.Errorf("failed to encode mail job: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.channel.PublishWithContext(ctx,
		t.exchange,
		t.routingKey,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    now,
			DeliveryMode: amqp.Persistent,
		},
	)
}

// Close closes the channel and the connection
func (t *AMQPTransport) Close() error {
	err := t.channel.Close()
	if t.conn != nil {
		if cerr := t.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
