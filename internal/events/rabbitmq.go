package events

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQConfig describes the exchange events are published to.
type RabbitMQConfig struct {
	URL      string
	Exchange string
	Queue    string
	Durable  bool
	Prefetch int
}

// RabbitMQBus publishes events to a fanout exchange with a bound queue.
type RabbitMQBus struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	queue    string
}

// NewRabbitMQBus dials RabbitMQ and declares the topology.
func NewRabbitMQBus(cfg RabbitMQConfig) (*RabbitMQBus, error) {
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	exchange := cfg.Exchange
	if exchange == "" {
		exchange = "chatwallet.events"
	}
	queue := cfg.Queue
	if queue == "" {
		queue = "chatwallet.events.log"
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	fail := func(step string, err error) (*RabbitMQBus, error) {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("%s: %w", step, err)
	}
	if cfg.Prefetch > 0 {
		if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
			return fail("set rabbitmq qos", err)
		}
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, cfg.Durable, !cfg.Durable, false, false, nil); err != nil {
		return fail("declare rabbitmq exchange", err)
	}
	if _, err := ch.QueueDeclare(queue, cfg.Durable, !cfg.Durable, false, false, nil); err != nil {
		return fail("declare rabbitmq queue", err)
	}
	if err := ch.QueueBind(queue, "", exchange, false, nil); err != nil {
		return fail("bind rabbitmq queue", err)
	}
	return &RabbitMQBus{conn: conn, ch: ch, exchange: exchange, queue: queue}, nil
}

func (b *RabbitMQBus) Publish(ctx context.Context, event Event) error {
	if b == nil || b.ch == nil {
		return errors.New("rabbitmq bus not initialised")
	}
	payload, err := encode(event)
	if err != nil {
		return err
	}
	return b.ch.PublishWithContext(ctx, b.exchange, string(event.Type), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         string(event.Type),
		Body:         payload,
	})
}

// Consume reads the bound queue with manual acknowledgements. Undecodable
// messages are rejected without requeue.
func (b *RabbitMQBus) Consume(ctx context.Context, handler Handler) error {
	if b == nil || b.ch == nil {
		return errors.New("rabbitmq bus not initialised")
	}
	msgs, err := b.ch.Consume(b.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume rabbitmq queue: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			event, err := decode(msg.Body)
			if err != nil {
				_ = msg.Reject(false)
				continue
			}
			if err := handler(ctx, event); err != nil {
				_ = msg.Nack(false, true)
				continue
			}
			_ = msg.Ack(false)
		}
	}
}

func (b *RabbitMQBus) Close() error {
	if b == nil {
		return nil
	}
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
