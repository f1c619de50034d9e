// Package amqp wires the tester to the message broker: one channel to
// consume jobs and acknowledge them, a distinct channel to publish
// results. The two must never be swapped: the broker only accepts an
// ack on the channel that delivered the message.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	sharedamqp "github.com/coursegrader/pipeline/shared/amqp"

	"github.com/coursegrader/pipeline/shared"
	"github.com/coursegrader/pipeline/tester/internal/domain"
)

// Session owns the tester's single broker connection and its two
// channels (consume and publish).
type Session struct {
	conn      *sharedamqp.Connection
	consumeCh *sharedamqp.Channel
	publishCh *sharedamqp.Channel
	cfg       shared.AMQPConfig
	logger    *zap.Logger
}

// Dial connects to the broker, declares the work exchange/queue
// topology, sets the consume channel's prefetch to parallelism and
// opens a separate publish channel.
func Dial(cfg shared.AMQPConfig, parallelism int, logger *zap.Logger) (*Session, error) {
	conn, err := sharedamqp.Dial(cfg)
	if err != nil {
		return nil, err
	}

	consumeCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := consumeCh.DeclareExchangeAndQueue(cfg); err != nil {
		consumeCh.Close()
		conn.Close()
		return nil, err
	}
	if err := consumeCh.Qos(parallelism); err != nil {
		consumeCh.Close()
		conn.Close()
		return nil, err
	}

	publishCh, err := conn.Channel()
	if err != nil {
		consumeCh.Close()
		conn.Close()
		return nil, err
	}

	return &Session{conn: conn, consumeCh: consumeCh, publishCh: publishCh, cfg: cfg, logger: logger}, nil
}

// Consume ranges over job deliveries, decoding each as a JobRequest and
// sending it to jobs. Deliveries that fail to decode are nacked without
// requeue (there is no way to make them valid by redelivery) and
// otherwise never acknowledged here: acknowledgement happens only
// after the corresponding result has been published, in PublishAndAck.
func (s *Session) Consume(ctx context.Context, jobs chan<- domain.Job) error {
	deliveries, err := s.consumeCh.Raw().Consume(s.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("amqp: delivery channel closed")
			}

			var req shared.JobRequest
			if err := json.Unmarshal(d.Body, &req); err != nil {
				s.logger.Error("failed to decode job request", zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}

			job := domain.Job{Request: req, DeliveryTag: d.DeliveryTag}
			select {
			case jobs <- job:
			case <-ctx.Done():
				_ = d.Nack(false, true)
				return nil
			}
		}
	}
}

// publisher and acker are the two halves of a result's lifecycle. They
// are satisfied by the publish and consume channels respectively, and
// stubbed in tests to verify the publish-before-ack ordering.
type publisher interface {
	PublishJSON(ctx context.Context, exchange, routingKey string, v any) error
}

type acker interface {
	Ack(deliveryTag uint64) error
}

// PublishAndAck publishes resp to its result queue (and, if configured,
// mirrors it onto the reports routing key), then acknowledges
// deliveryTag on the consume channel. Implements pool.ResultPublisher.
func (s *Session) PublishAndAck(ctx context.Context, resp shared.JobResponse, deliveryTag uint64) error {
	return publishThenAck(ctx, s.publishCh, s.consumeCh, s.cfg, resp, deliveryTag, s.logger)
}

func publishThenAck(ctx context.Context, pub publisher, ack acker, cfg shared.AMQPConfig, resp shared.JobResponse, deliveryTag uint64, logger *zap.Logger) error {
	if err := pub.PublishJSON(ctx, "", resp.ResultQueue, resp); err != nil {
		return fmt.Errorf("amqp: publish result: %w", err)
	}

	if cfg.ReportsRoutingKey != "" {
		if err := pub.PublishJSON(ctx, cfg.Exchange, cfg.ReportsRoutingKey, resp); err != nil {
			logger.Warn("failed to mirror result onto reports routing key", zap.Error(err))
		}
	}

	if err := ack.Ack(deliveryTag); err != nil {
		return fmt.Errorf("amqp: ack delivery %d: %w", deliveryTag, err)
	}
	return nil
}

// Close tears down both channels and the connection.
func (s *Session) Close() error {
	s.publishCh.Close()
	s.consumeCh.Close()
	return s.conn.Close()
}
