package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	database "github.com/FACorreiaa/go-identity-service/app/db"
	"github.com/FACorreiaa/go-identity-service/app/observability/metrics"
	"github.com/FACorreiaa/go-identity-service/app/tracer"
	"github.com/FACorreiaa/go-identity-service/config"
	"github.com/FACorreiaa/go-identity-service/internal/container"
)

// @title                      Identity Service API
// @version                    1.0
// @description                Registration, email verification, login, password reset, profile and user administration.
// @host                       localhost:8000
// @BasePath                   /
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
func main() {
	// Use standard log until slog is configured, in case godotenv fails
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}

	logger := setupLogger()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Service stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down complete.")
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Observability ---
	serviceName := cfg.Observability.ServiceName
	if serviceName == "" {
		serviceName = "go-identity-service"
	}
	providers, err := tracer.InitTracingAndMetrics(serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down telemetry providers", slog.Any("error", err))
		}
	}()
	metrics.InitAppMetrics()

	if port := cfg.Handlers.Prometheus.Port; port != "" {
		go func() {
			if err := tracer.ServeMetrics(ctx, logger, port, providers.Handler()); err != nil {
				logger.Error("Metrics server failed", slog.Any("error", err))
			}
		}()
	}

	// --- Database ---
	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		return err
	}
	// Run migrations before the main pool is created
	if err := database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
		return err
	}

	// --- Dependency Injection ---
	c, err := container.NewContainer(ctx, &cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build container: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("Error releasing resources", slog.Any("error", err))
		}
	}()

	if !c.WaitForDB(ctx) {
		return errors.New("database not ready after waiting")
	}

	// --- HTTP Server Setup ---
	port := cfg.Server.HTTPPort
	if port == "" {
		port = cfg.Handlers.ExternalAPI.Port
	}
	serverAddress := fmt.Sprintf(":%s", port)
	srv := &http.Server{
		Addr:         serverAddress,
		Handler:      c.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", slog.String("address", serverAddress))
		var err error
		if cfg.Handlers.ExternalAPI.EnableTLS {
			err = srv.ListenAndServeTLS(cfg.Handlers.ExternalAPI.CertFile, cfg.Handlers.ExternalAPI.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, starting graceful shutdown...")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("HTTP server ListenAndServe error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", slog.Any("error", err))
		return err
	}
	logger.Info("HTTP server gracefully stopped")
	return nil
}

// setupLogger configures and returns the application logger.
func setupLogger() *slog.Logger {
	var logger *slog.Logger
	env := os.Getenv("APP_ENV")

	if env == "development" || env == "" {
		tintOpts := &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}
		logger = slog.New(tint.NewHandler(os.Stdout, tintOpts))
		log.Println("Initialized development logger (tint)")
	} else {
		jsonOpts := &slog.HandlerOptions{
			Level:     slog.LevelInfo,
			AddSource: false,
		}
		logger = slog.New(slog.NewJSONHandler(os.Stdout, jsonOpts))
		log.Println("Initialized production logger (JSON)")
	}
	return logger
}
