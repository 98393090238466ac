package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"regdash/internal/amqp"
	"regdash/internal/cli"
	"regdash/internal/log"
	"regdash/internal/metrics"
	"regdash/internal/storage"
	"regdash/internal/worker"
)

// metricsPortEnv names the port for the worker's /metrics listener. Unset disables it.
const metricsPortEnv = "WORKER_METRICS_PORT"

func main() {
	cli.LoadEnvFile()

	bootLogger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(bootLogger)
	logger := cli.SetupLogger(cfg.LogLevel).WithComponent(log.ComponentWorker)

	logger.Info("Starting regdash-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the ingest worker")
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		_ = repo.Close()
		os.Exit(1)
	}
	if err := client.SetPrefetch(cfg.IngestBatchSize); err != nil {
		logger.Warn("Failed to set prefetch", log.FieldError, err, "prefetch", cfg.IngestBatchSize)
	}

	collector := metrics.New()
	ingest := worker.NewIngestWorker(repo,
		worker.WithLogger(logger),
		worker.WithObserver(collector),
	)

	var metricsSrv *http.Server
	if port := os.Getenv(metricsPortEnv); port != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		metricsSrv = &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server error", log.FieldError, err, "port", port)
			}
		}()
	}

	consumeCtx, stopConsuming := context.WithCancel(context.Background())
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		stopConsuming()
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(ctx)
		}
		if err := client.Close(); err != nil {
			logger.Error("AMQP close error", log.FieldError, err)
		}
		if err := repo.Close(); err != nil {
			logger.Error("SQLite close error", log.FieldError, err)
		}
	})

	go func() {
		logger.Info("Consuming report events",
			"exchange", cfg.AMQPExchange,
			"queue", cfg.AMQPQueue,
			"prefetch", cfg.IngestBatchSize)
		if err := client.Consume(consumeCtx, ingest.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Event consumption stopped", log.FieldError, err)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
