package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"synapse-project-api/internal"
	"synapse-project-api/internal/config"
	"synapse-project-api/internal/events"
	"synapse-project-api/internal/logging"
	"synapse-project-api/internal/repository"
	"synapse-project-api/internal/service"
)

func main() {
	cfg, err := config.LoadAndValidate()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Env)
	if err != nil {
		log.Fatalf("Logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped with error", zap.String("error", logging.SanitizeError(err)))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := repository.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close storage", zap.Error(err))
		}
	}()

	publisher, err := events.NewPublisher(ctx, cfg.Events, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("Failed to close event publisher", zap.Error(err))
		}
	}()

	metrics := internal.NewMetrics()
	dispatcher := events.NewDispatcher(publisher, events.DispatcherConfigFrom(cfg.Events), logger,
		events.WithRecorder(metrics))

	projects := service.NewProjectService(store, dispatcher, logger, service.WithRecorder(metrics))

	srv := internal.NewServer(cfg, projects, metrics, logger,
		internal.HealthCheck{Name: "storage", Check: store.Ping},
		internal.HealthCheck{Name: "events", Check: dispatcher.Ping},
	)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           srv.Router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting Synapse Project API",
			zap.String("addr", httpServer.Addr),
			zap.String("env", cfg.Env),
			zap.String("storage", cfg.Storage.Driver),
			zap.String("events", cfg.Events.Driver),
			zap.Bool("metrics", cfg.API.EnableMetrics),
			zap.Bool("swagger", cfg.API.EnableSwagger))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			_ = dispatcher.Close(context.Background())
			return err
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	// in-flight requests are done, so nothing emits after this point
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("Pending events were dropped", zap.Error(err))
	}

	logger.Info("Server stopped")
	return nil
}
