package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/coursegrader/pipeline/tester/internal/config"
	amqpdelivery "github.com/coursegrader/pipeline/tester/internal/delivery/amqp"
	"github.com/coursegrader/pipeline/tester/internal/domain"
	"github.com/coursegrader/pipeline/tester/internal/executor"
	"github.com/coursegrader/pipeline/tester/internal/pool"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// jobQueueDepth bounds the channel between the AMQP consumer and the
// executor pool.
const jobQueueDepth = 16

func main() {
	configPath := flag.String("config", "tester.yaml", "path to the tester's configuration file")
	metricsAddr := flag.String("metrics-addr", ":9090", "address to serve /metrics on")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("starting coursegrader tester")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	session, err := amqpdelivery.Dial(cfg.AMQP, cfg.Tester.Parallelism, logger)
	if err != nil {
		logger.Fatal("failed to connect to message broker", zap.Error(err))
	}
	defer session.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobs := make(chan domain.Job, jobQueueDepth)
	exec := executor.New(cfg.Tester, logger)
	workers := pool.New(cfg.Tester.Parallelism, jobs, exec, session, logger)
	workers.Start(ctx)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	fatal := make(chan error, 1)
	go func() {
		if err := session.Consume(ctx, jobs); err != nil {
			fatal <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case <-quit:
		logger.Info("shutting down tester")
	case err := <-fatal:
		logger.Error("amqp consumer stopped, shutting down", zap.Error(err))
		exitCode = 1
	}
	cancel()
	workers.Stop()

	logger.Info("tester stopped")
	if exitCode != 0 {
		logger.Sync()
		os.Exit(exitCode)
	}
}
