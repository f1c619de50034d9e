// Package amqp provides the small capability layer over the message
// broker that both the dispatcher and the tester build on: connecting,
// declaring the direct-exchange-plus-queue topology, publishing,
// consuming and acknowledging. It mirrors the shape of the original
// amqp-utils crate (AmqpConnection / AMQPChannel) one-to-one.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"

	amqp091 "github.com/rabbitmq/amqp091-go"

	"github.com/coursegrader/pipeline/shared"
)

// Connection wraps a single broker connection. Callers are expected to
// open exactly one per process and derive one Channel per concurrent
// role (consume, publish) from it: never share a Channel between a
// consume loop and an unrelated publish loop.
type Connection struct {
	conn *amqp091.Connection
}

// Dial opens a new connection to the broker described by cfg.
func Dial(cfg shared.AMQPConfig) (*Connection, error) {
	conn, err := amqp091.Dial(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("amqp: dial %s: %w", cfg.URL(), err)
	}
	return &Connection{conn: conn}, nil
}

// Channel opens a fresh channel on the connection.
func (c *Connection) Channel() (*Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("amqp: open channel: %w", err)
	}
	return &Channel{ch: ch}, nil
}

// Close tears down the underlying connection (and all of its channels).
func (c *Connection) Close() error {
	return c.conn.Close()
}

// NotifyClose surfaces the connection's close notification, so a caller
// can detect broker-initiated disconnects.
func (c *Connection) NotifyClose() chan *amqp091.Error {
	return c.conn.NotifyClose(make(chan *amqp091.Error, 1))
}

// Channel wraps a single AMQP channel.
type Channel struct {
	ch *amqp091.Channel
}

// Raw exposes the underlying amqp091 channel for operations this wrapper
// does not cover (e.g. basic_consume, which returns a delivery stream
// that callers need to range over directly).
func (c *Channel) Raw() *amqp091.Channel {
	return c.ch
}

// DeclareExchangeAndQueue declares a durable direct exchange and a
// durable queue, and binds them with the configured routing key: the
// topology both the dispatcher and the tester need on the work queue.
func (c *Channel) DeclareExchangeAndQueue(cfg shared.AMQPConfig) error {
	if err := c.ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("amqp: declare exchange %s: %w", cfg.Exchange, err)
	}
	if _, err := c.ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("amqp: declare queue %s: %w", cfg.Queue, err)
	}
	if err := c.ch.QueueBind(cfg.Queue, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("amqp: bind queue %s to exchange %s: %w", cfg.Queue, cfg.Exchange, err)
	}
	return nil
}

// DeclareDurableQueue declares a durable queue without any exchange
// binding: used for the dispatcher's standalone result queue.
func (c *Channel) DeclareDurableQueue(name string) error {
	_, err := c.ch.QueueDeclare(name, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("amqp: declare queue %s: %w", name, err)
	}
	return nil
}

// Qos sets the channel's prefetch bound. global=false always: prefetch
// applies per consumer, not to the whole channel.
func (c *Channel) Qos(prefetchCount int) error {
	if err := c.ch.Qos(prefetchCount, 0, false); err != nil {
		return fmt.Errorf("amqp: qos(%d): %w", prefetchCount, err)
	}
	return nil
}

// PublishJSON JSON-encodes v and publishes it with default properties
// apart from the application/json content type.
func (c *Channel) PublishJSON(ctx context.Context, exchange, routingKey string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("amqp: marshal payload: %w", err)
	}
	return c.ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp091.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

// Ack acknowledges a single delivery tag; multiple is always false.
func (c *Channel) Ack(deliveryTag uint64) error {
	return c.ch.Ack(deliveryTag, false)
}

// Close closes the channel.
func (c *Channel) Close() error {
	return c.ch.Close()
}
