// job-server is the HTTP API server for dataset analysis jobs.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/broadinstitute/dig-job-server/internal/api"
	"github.com/broadinstitute/dig-job-server/internal/batch"
	"github.com/broadinstitute/dig-job-server/internal/config"
	"github.com/broadinstitute/dig-job-server/internal/health"
	"github.com/broadinstitute/dig-job-server/internal/job"
	"github.com/broadinstitute/dig-job-server/internal/notify"
	"github.com/broadinstitute/dig-job-server/internal/observability"
	"github.com/broadinstitute/dig-job-server/internal/store"

	"github.com/joho/godotenv"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(); err != nil {
		slog.Error("Service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Local development convenience; missing .env is fine
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env")
	}

	svcCfg := config.LoadServiceConfig()
	batchCfg := config.LoadBatchConfig()
	streamCfg := config.LoadStreamConfig()

	// Setup metrics
	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return err
	}

	// Select the job/dataset store
	var st store.Store
	if svcCfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(ctx, svcCfg.DatabaseURL)
		if err != nil {
			return err
		}
		st = pg
		slog.Info("Connected to Postgres")
	} else {
		st = store.NewMemory()
		slog.Warn("No DATABASE_URL configured, using in-memory store")
	}
	defer st.Close()

	// Connect the batch backend
	backend, err := batch.NewAWS(ctx, batchCfg.Region, batchCfg.LogGroup)
	if err != nil {
		return err
	}
	slog.Info("Batch backend configured",
		"region", batchCfg.Region,
		"queue", batchCfg.JobQueue,
		"logGroup", batchCfg.LogGroup,
	)

	// Completion webhook notifier
	notifier := notify.New(notify.Config{}, metrics)

	healthChecker := health.NewChecker(st, backend)

	jobService := job.NewService(job.ServiceConfig{
		Store:        st,
		Backend:      backend,
		Registry:     job.NewRegistry(),
		Notifier:     notifier,
		Metrics:      metrics,
		PollInterval: batchCfg.PollInterval,
	})

	handler := api.NewHandler(api.HandlerConfig{
		JobService:    jobService,
		Store:         st,
		Metrics:       metrics,
		HealthChecker: healthChecker,
		JobQueue:      batchCfg.JobQueue,
		JobDefinition: batchCfg.JobDefinition,
		KeepAlive:     streamCfg.KeepAlive,
	})

	router := api.NewRouter(api.RouterConfig{
		Handler: handler,
		Metrics: metrics,
		APIKey:  svcCfg.APIKey,
	})

	if svcCfg.APIKey != "" {
		slog.Info("API authentication enabled")
	} else {
		slog.Warn("API authentication disabled - no API_KEY configured")
	}

	// Create API server. WriteTimeout is generous because status streams
	// hold their connection open across many keepalive intervals.
	apiServer := &http.Server{
		Addr:        ":" + svcCfg.Port,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Create metrics server
	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", metricsHandler)
	metricsServer := &http.Server{
		Addr:         ":" + svcCfg.MetricsPort,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		slog.Info("Starting API server", "port", svcCfg.Port)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	go func() {
		slog.Info("Starting metrics server", "port", svcCfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// shutdown closes both servers gracefully
	shutdown := func(timeout time.Duration) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server shutdown error", "error", err)
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErr:
		slog.Error("Server failed to start", "error", err)
		shutdown(5 * time.Second)
		return err
	}

	// Phase 1: Mark service as unhealthy for load balancer draining
	healthChecker.SetShuttingDown()

	if svcCfg.ShutdownDrainWait > 0 {
		slog.Info("Waiting for traffic to drain", "duration", svcCfg.ShutdownDrainWait)
		time.Sleep(svcCfg.ShutdownDrainWait)
	}

	// Phase 2: Graceful shutdown - stop accepting new connections, finish
	// in-flight requests and open streams
	slog.Info("Starting graceful shutdown")
	shutdown(25 * time.Second)

	// Phase 3: Stop pollers. Interrupted jobs keep running in AWS Batch and
	// their records stay RUNNING; a resubmission after restart re-polls them.
	slog.Info("Stopping job pollers")
	svcCtx, svcCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer svcCancel()
	if err := jobService.Close(svcCtx); err != nil {
		slog.Warn("Job service shutdown error", "error", err)
	}

	// Phase 4: Drain the webhook notifier
	slog.Info("Draining webhook notifier")
	notifierCtx, notifierCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer notifierCancel()
	if err := notifier.Close(notifierCtx); err != nil {
		slog.Warn("Notifier shutdown error", "error", err)
	}

	stats := notifier.Stats()
	slog.Info("Notifier stats",
		"delivered", stats.Delivered,
		"failed", stats.Failed,
		"dropped", stats.Dropped,
	)

	slog.Info("Shutdown complete")
	return nil
}
