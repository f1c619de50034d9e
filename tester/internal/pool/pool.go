// Package pool runs a fixed number of worker goroutines that execute
// jobs and publish their results, bounding concurrent container runs to
// the configured parallelism.
package pool

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/coursegrader/pipeline/shared"
	"github.com/coursegrader/pipeline/tester/internal/domain"
	"github.com/coursegrader/pipeline/tester/internal/metrics"
)

// Runner executes one job and returns its YAML grade report; satisfied
// by *executor.Executor and stubbed in tests.
type Runner interface {
	Run(ctx context.Context, req shared.JobRequest) string
}

// ResultPublisher publishes a JobResponse and then acknowledges the
// originating delivery on the channel it was consumed from. The two
// steps must happen in that order (publish before ack), and the ack
// must never be attempted on any channel but the original consumer's.
type ResultPublisher interface {
	PublishAndAck(ctx context.Context, resp shared.JobResponse, deliveryTag uint64) error
}

// Pool runs size worker goroutines pulling from jobs.
type Pool struct {
	size      int
	jobs      <-chan domain.Job
	executor  Runner
	publisher ResultPublisher
	logger    *zap.Logger
	wg        sync.WaitGroup
}

func New(size int, jobs <-chan domain.Job, exec Runner, publisher ResultPublisher, logger *zap.Logger) *Pool {
	return &Pool{size: size, jobs: jobs, executor: exec, publisher: publisher, logger: logger}
}

// Start launches the worker goroutines. Call Stop to wait for them to drain.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("starting executor pool", zap.Int("parallelism", p.size))
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool) Stop() {
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("executor worker panic recovered", zap.Int("worker_id", id), zap.Any("panic", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.process(ctx, id, job)
		}
	}
}

func (p *Pool) process(ctx context.Context, id int, job domain.Job) {
	metrics.JobsInFlight.Inc()
	defer metrics.JobsInFlight.Dec()

	p.logger.Info("executing job",
		zap.Int("worker_id", id), zap.String("job_name", job.Request.JobName), zap.String("lab", job.Request.Lab))

	yamlResult := p.executor.Run(ctx, job.Request)

	resp := shared.JobResponse{
		JobName:     job.Request.JobName,
		Lab:         job.Request.Lab,
		Opaque:      job.Request.Opaque,
		YAMLResult:  yamlResult,
		ResultQueue: job.Request.ResultQueue,
		DeliveryTag: job.DeliveryTag,
	}

	if err := p.publisher.PublishAndAck(ctx, resp, job.DeliveryTag); err != nil {
		p.logger.Error("failed to publish result and ack delivery",
			zap.String("job_name", job.Request.JobName), zap.Error(err))
		metrics.JobsProcessed.WithLabelValues("publish_error").Inc()
		return
	}
	metrics.JobsProcessed.WithLabelValues("done").Inc()
}
