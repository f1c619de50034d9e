package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/coursegrader/pipeline/dispatcher/internal/config"
	amqpdelivery "github.com/coursegrader/pipeline/dispatcher/internal/delivery/amqp"
	httpdelivery "github.com/coursegrader/pipeline/dispatcher/internal/delivery/http"
	"github.com/coursegrader/pipeline/dispatcher/internal/domain"
	"github.com/coursegrader/pipeline/dispatcher/internal/metrics"
	"github.com/coursegrader/pipeline/dispatcher/internal/packager"
	"github.com/coursegrader/pipeline/dispatcher/internal/poster"
	"github.com/coursegrader/pipeline/dispatcher/internal/reporter"
	"github.com/coursegrader/pipeline/shared"
)

// hookQueueDepth bounds the fan-out between the HTTP frontend and the
// packaging pool.
const hookQueueDepth = 16

func main() {
	configPath := flag.String("config", "dispatcher.yaml", "path to the dispatcher's configuration file")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("starting coursegrader dispatcher")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	gitlabClient, err := poster.New(cfg.Gitlab, logger)
	if err != nil {
		logger.Fatal("failed to initialize hosting-service client", zap.Error(err))
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer rdb.Close()
	}

	pub, err := amqpdelivery.NewPublisher(cfg.AMQP, logger)
	if err != nil {
		logger.Fatal("failed to connect publisher to message broker", zap.Error(err))
	}
	defer pub.Close()

	resultConsumer, err := amqpdelivery.NewResultConsumer(cfg.AMQP, shared.ResultQueueName, logger)
	if err != nil {
		logger.Fatal("failed to connect result consumer to message broker", zap.Error(err))
	}
	defer resultConsumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hooks := make(chan domain.PushHook, hookQueueDepth)
	pkg := packager.New(cfg, gitlabClient, logger)

	for i := 0; i < cfg.Package.Threads; i++ {
		go runPackagerWorker(ctx, cfg, pkg, pub, hooks, logger)
	}

	fatal := make(chan error, 1)
	go func() {
		err := resultConsumer.Consume(ctx, func(resp shared.JobResponse) {
			handleResult(cfg, gitlabClient, resp, logger)
		})
		if err != nil {
			fatal <- fmt.Errorf("result consumer stopped: %w", err)
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	router := httpdelivery.NewRouter(&httpdelivery.RouterDeps{
		SecretToken:     cfg.Gitlab.SecretToken,
		ZipDir:          cfg.Package.ZipDir,
		Hooks:           hooks,
		Logger:          logger,
		Redis:           rdb,
		RateLimitPerMin: cfg.Redis.RateLimitPerMin,
	})

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	go func() {
		logger.Info("dispatcher HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case <-quit:
		logger.Info("shutting down dispatcher")
	case err := <-fatal:
		logger.Error("pipeline stage failed, shutting down", zap.Error(err))
		exitCode = 1
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server forced to shutdown", zap.Error(err))
	}

	logger.Info("dispatcher stopped")
	if exitCode != 0 {
		logger.Sync()
		os.Exit(exitCode)
	}
}

// runPackagerWorker drains hooks and turns each into job requests, one
// publish per eligible lab. Back-pressure on the publisher blocks this
// worker, which blocks the hooks channel, which blocks the HTTP
// handler's fire-and-forget send once the channel is full.
func runPackagerWorker(ctx context.Context, cfg *config.Config, pkg *packager.Packager, pub *amqpdelivery.Publisher, hooks <-chan domain.PushHook, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case hook := <-hooks:
			metrics.HooksReceived.WithLabelValues(hook.ObjectKind).Inc()
			start := time.Now()
			packaged, err := pkg.Package(hook)
			metrics.PackageDuration.Observe(time.Since(start).Seconds())
			if err != nil {
				logger.Error("packaging failed", zap.String("commit", hook.Desc()), zap.Error(err))
				continue
			}

			for _, p := range packaged {
				metrics.LabsPackaged.WithLabelValues(p.Lab, "packaged").Inc()
				req := buildJobRequest(cfg, hook, p)
				if err := pub.Publish(ctx, req); err != nil {
					if ctx.Err() != nil {
						return
					}
					logger.Fatal("failed to publish job request",
						zap.String("commit", hook.Desc()), zap.String("lab", p.Lab), zap.Error(err))
				}
			}
		}
	}
}

func buildJobRequest(cfg *config.Config, hook domain.PushHook, p packager.Packaged) shared.JobRequest {
	opaque, _ := domain.Opaque{Hook: hook, ZipBasename: p.ZipBasename}.Encode()
	jobName := fmt.Sprintf("[gitlab:%s:%s:%s:%s:%s]",
		hook.Repository.Name, hook.Repository.Homepage, hook.Ref, hook.PushedSHA(), p.Lab)

	return shared.JobRequest{
		JobName:     jobName,
		Lab:         p.Lab,
		Dir:         p.Dir,
		ZipURL:      fmt.Sprintf("%s/zips/%s", cfg.Server.BaseURL, p.ZipBasename),
		ResultQueue: shared.ResultQueueName,
		Opaque:      opaque,
	}
}

func handleResult(cfg *config.Config, gitlabClient *poster.Client, resp shared.JobResponse, logger *zap.Logger) {
	markdown, err := reporter.ToMarkdown(resp.Lab, resp.YAMLResult)
	if err != nil {
		logger.Error("failed to decode result report", zap.String("job_name", resp.JobName), zap.Error(err))
		metrics.ResultsReceived.WithLabelValues("malformed").Inc()
		return
	}

	opaque, err := domain.DecodeOpaque(resp.Opaque)
	if err != nil {
		logger.Error("failed to decode opaque payload", zap.String("job_name", resp.JobName), zap.Error(err))
		metrics.ResultsReceived.WithLabelValues("malformed").Inc()
		return
	}

	description := fmt.Sprintf("grade: %d/%d", markdown.Grade, markdown.MaxGrade)
	if markdown.Passed() {
		gitlabClient.PostStatus(opaque.Hook, poster.StateSuccess, resp.Lab, description)
		logger.Info("tests passed, posting status only", zap.String("job_name", resp.JobName))
		metrics.ResultsReceived.WithLabelValues("success").Inc()
	} else {
		gitlabClient.PostStatus(opaque.Hook, poster.StateFailed, resp.Lab, description)
		gitlabClient.PostComment(opaque.Hook, markdown.Body)
		logger.Info("tests failed, posting status and comment",
			zap.String("job_name", resp.JobName), zap.Int("grade", markdown.Grade), zap.Int("max_grade", markdown.MaxGrade))
		metrics.ResultsReceived.WithLabelValues("failed").Inc()
	}

	if err := packager.RemoveZip(cfg, opaque.ZipBasename); err != nil {
		logger.Warn("could not remove zip file", zap.String("zip", opaque.ZipBasename), zap.Error(err))
	}
}
