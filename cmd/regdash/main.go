package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"regdash/internal/analytics"
	"regdash/internal/cli"
	apphttp "regdash/internal/http"
	"regdash/internal/log"
	"regdash/internal/metrics"
	"regdash/internal/middleware/ratelimit"
)

func main() {
	cli.LoadEnvFile()

	bootLogger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(bootLogger)
	logger := cli.SetupLogger(cfg.LogLevel).WithComponent(log.ComponentApp)

	collector := metrics.New()
	res := cli.OpenBackend(context.Background(), logger, cfg, collector)

	assembler := analytics.NewAssembler(res.Reader,
		analytics.WithRecentLimits(cfg.RecentLimit, cfg.MaxRecentLimit),
		analytics.WithObserver(collector),
	)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Dashboard:       assembler,
		Store:           res.Reader,
		Metrics:         collector.Handler(),
		RequestObserver: collector,
		Logger:          logger,
		RateLimit: ratelimit.Config{
			RequestsPerWindow: cfg.RateLimitPerMinute,
			Window:            time.Minute,
		},
		TrustedProxies: cfg.TrustedProxies,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := res.Close(); err != nil {
			logger.Error("Backend close error", log.FieldError, err)
		}
	})

	logger.Info("Starting regdash server",
		"port", cfg.Port,
		log.FieldBackend, cfg.DataBackend,
		"snapshot_cache_ttl", cfg.SnapshotCacheTTL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
