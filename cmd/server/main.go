// Package main provides the entry point for the request-queue service.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/ristijajohannesefestival/pela/internal/apperrors"
	"github.com/ristijajohannesefestival/pela/internal/config"
	"github.com/ristijajohannesefestival/pela/internal/handler"
	"github.com/ristijajohannesefestival/pela/internal/health"
	"github.com/ristijajohannesefestival/pela/internal/metrics"
	"github.com/ristijajohannesefestival/pela/internal/server"
	"github.com/ristijajohannesefestival/pela/internal/service"
	"github.com/ristijajohannesefestival/pela/internal/spotify"
	"github.com/ristijajohannesefestival/pela/internal/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load .env if present, before the config layer reads the environment
	_ = godotenv.Load()

	// Initialize logger
	logger := initLogger()
	defer logger.Sync()

	logger.Info("starting request-queue service")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("store_driver", cfg.Store.Driver),
		zap.Bool("spotify_configured", cfg.Spotify.ClientID != ""),
	)

	// Initialize the key-value store
	st, err := newStore(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create store", zap.Error(err))
	}
	defer st.Close()

	logger.Info("store initialized", zap.String("driver", cfg.Store.Driver))

	// Initialize metrics
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics()
		m.SetHealthStatus(true)
	}

	// Start metrics server if enabled
	var metricsServer *metrics.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, logger)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error("metrics server error", zap.Error(err))
			}
		}()
		logger.Info("metrics server started",
			zap.Int("port", cfg.Metrics.Port),
			zap.String("path", cfg.Metrics.Path),
		)
	}

	// Initialize the Spotify client and services
	httpClient := &http.Client{Timeout: 15 * time.Second}
	provider := spotify.NewClient(cfg.Spotify, st, httpClient, m, logger)

	queues := service.NewQueueService(st, cfg.Queue.CooldownWindow, logger)
	search := service.NewSearchService(st, provider, cfg.Search.WindowLimit, cfg.Search.Window, m, logger)
	playback := service.NewPlaybackService(st, queues, provider, logger)

	errorHandler := apperrors.NewHandler(logger)
	handlers := handler.NewHandlers(queues, search, playback, errorHandler, logger)
	healthCheck := health.NewChecker(st, logger)

	// Initialize HTTP server
	httpServer := server.NewServer(cfg, handlers, healthCheck, errorHandler, m, logger)
	httpServer.SetupRoutes()

	// Start HTTP server in goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errChan <- err
		}
	}()

	logger.Info("HTTP server started", zap.Int("port", cfg.Server.Port))

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		logger.Error("server error", zap.Error(err))
	}

	// Graceful shutdown
	logger.Info("initiating graceful shutdown")
	if m != nil {
		m.SetHealthStatus(false)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Shutdown HTTP server
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown HTTP server", zap.Error(err))
	}

	// Shutdown metrics server
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.Error("failed to shutdown metrics server", zap.Error(err))
		}
	}

	logger.Info("shutdown complete")
}

// newStore creates the key-value store selected by configuration.
func newStore(cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	switch cfg.Store.Driver {
	case "redis":
		return store.NewRedisStore(
			cfg.Store.Redis.Host,
			cfg.Store.Redis.Port,
			cfg.Store.Redis.Password,
			cfg.Store.Redis.DB,
			logger,
		)
	case "postgres":
		return store.NewPostgresStore(
			cfg.Store.Postgres.Host,
			cfg.Store.Postgres.Port,
			cfg.Store.Postgres.Database,
			cfg.Store.Postgres.User,
			cfg.Store.Postgres.Password,
			cfg.Store.Postgres.MaxConns,
			cfg.Store.Postgres.MinConns,
			logger,
		)
	default:
		return store.NewMemoryStore(), nil
	}
}

// initLogger initializes the zap logger.
func initLogger() *zap.Logger {
	// Get log level from environment
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	var level zapcore.Level
	switch logLevel {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	// Get log format from environment
	logFormat := os.Getenv("LOG_FORMAT")

	var config zap.Config
	if logFormat == "console" {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}

	config.Level = zap.NewAtomicLevelAt(level)
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	logger, err := config.Build()
	if err != nil {
		// Fallback to basic logger
		logger, _ = zap.NewProduction()
	}

	return logger
}
