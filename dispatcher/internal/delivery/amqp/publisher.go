package amqp

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	sharedamqp "github.com/coursegrader/pipeline/shared/amqp"

	"github.com/coursegrader/pipeline/shared"
)

// Publisher sends job requests to the work exchange. Connection loss is
// treated as fatal: the dispatcher does not reconnect mid-flight, it
// exits and relies on its process supervisor to restart it.
type Publisher struct {
	conn   *sharedamqp.Connection
	ch     *sharedamqp.Channel
	cfg    shared.AMQPConfig
	logger *zap.Logger
}

// NewPublisher dials the broker, declares the work exchange/queue
// topology and returns a Publisher bound to its own channel.
func NewPublisher(cfg shared.AMQPConfig, logger *zap.Logger) (*Publisher, error) {
	conn, err := sharedamqp.Dial(cfg)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.DeclareExchangeAndQueue(cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch, cfg: cfg, logger: logger}, nil
}

// Publish sends req to the work exchange under the configured routing key.
func (p *Publisher) Publish(ctx context.Context, req shared.JobRequest) error {
	if err := p.ch.PublishJSON(ctx, p.cfg.Exchange, p.cfg.RoutingKey, req); err != nil {
		return fmt.Errorf("publisher: publish %s: %w", req.JobName, err)
	}
	p.logger.Debug("published job", zap.String("job_name", req.JobName), zap.String("lab", req.Lab))
	return nil
}

// Close tears down the publisher's channel and connection.
func (p *Publisher) Close() error {
	p.ch.Close()
	return p.conn.Close()
}
