package amqp

import (
	"context"
	"encoding/json"
	"errors"

	amqp091 "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	sharedamqp "github.com/coursegrader/pipeline/shared/amqp"

	"github.com/coursegrader/pipeline/dispatcher/internal/domain"
	"github.com/coursegrader/pipeline/shared"
)

// ResultConsumer reads JobResponse deliveries off the dispatcher's own
// result queue. Unlike the tester's consumer, it acks every delivery the
// instant it is received: the queue holds nothing worth redelivering,
// since a result that fails to decode can never be retried into
// validity, and reporting failures are logged, not retried.
type ResultConsumer struct {
	conn   *sharedamqp.Connection
	ch     *sharedamqp.Channel
	queue  string
	logger *zap.Logger
}

// NewResultConsumer dials the broker and declares the durable result
// queue named by resultQueue.
func NewResultConsumer(cfg shared.AMQPConfig, resultQueue string, logger *zap.Logger) (*ResultConsumer, error) {
	conn, err := sharedamqp.Dial(cfg)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.DeclareDurableQueue(resultQueue); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &ResultConsumer{conn: conn, ch: ch, queue: resultQueue, logger: logger}, nil
}

// Consume ranges over deliveries until ctx is cancelled (returning nil)
// or the broker closes the channel (returning an error), invoking
// handle for every JobResponse that decodes cleanly.
func (c *ResultConsumer) Consume(ctx context.Context, handle func(shared.JobResponse)) error {
	deliveries, err := c.ch.Raw().Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("amqp: result delivery channel closed")
			}
			c.handleDelivery(d, handle)
		}
	}
}

func (c *ResultConsumer) handleDelivery(d amqp091.Delivery, handle func(shared.JobResponse)) {
	if err := d.Ack(false); err != nil {
		c.logger.Warn("failed to ack result delivery", zap.Error(err))
	}

	var resp shared.JobResponse
	if err := json.Unmarshal(d.Body, &resp); err != nil {
		c.logger.Warn("discarding malformed result delivery", zap.NamedError("reason", domain.ErrMalformedResult), zap.Error(err))
		return
	}
	handle(resp)
}

// Close tears down the consumer's channel and connection.
func (c *ResultConsumer) Close() error {
	c.ch.Close()
	return c.conn.Close()
}
