// Package cli provides common initialization shared by cmd/ledgerq,
// cmd/ledgerq-repl and cmd/ledgerq-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ledgerq/internal/amqp"
	"ledgerq/internal/backend"
	"ledgerq/internal/config"
	"ledgerq/internal/core"
	"ledgerq/internal/engine"
	"ledgerq/internal/inference"
	"ledgerq/internal/ledger"
	"ledgerq/internal/log"
)

// SetupLogger builds the process logger from level and format strings and
// makes it the slog default. Unknown levels fall back to info.
func SetupLogger(level, format, component string) *log.Logger {
	cfg := log.DefaultConfig()
	if l, err := log.ParseLevel(level); err == nil {
		cfg.Level = l
	}
	if format == string(log.FormatJSON) {
		cfg.Format = log.FormatJSON
	}
	cfg.Component = component
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", log.FieldError, err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// LoadCategories reads the category table override, or the built-in table.
func LoadCategories(logger *log.Logger, cfg *config.Config) *core.CategoryTable {
	table, err := core.LoadCategoryTable(cfg.CategoriesFile)
	if err != nil {
		logger.Error("Failed to load categories", log.FieldError, err, "path", cfg.CategoriesFile)
		os.Exit(1)
	}
	return table
}

// InitStore creates the configured ledger store. Returns the store and its
// cleanup or exits the process on failure.
func InitStore(ctx context.Context, logger *log.Logger, cfg *config.Config, table *core.CategoryTable) (ledger.Store, backend.CleanupFunc) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger, table).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize ledger store", log.FieldError, err, "backend", bcfg.Type)
		os.Exit(1)
	}
	return res.Store, res.Cleanup
}

// InitGenerator builds the fallback inference client; nil means fallback
// is disabled.
func InitGenerator(logger *log.Logger, cfg *config.Config) inference.Generator {
	gen, err := inference.FromConfig(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize inference provider", log.FieldError, err, log.FieldProvider, cfg.InferenceProvider)
		os.Exit(1)
	}
	return gen
}

// InitNotifier connects the AMQP publisher when AMQP_URL is set. A broker
// that cannot be reached is logged and the engine runs without fan-out.
func InitNotifier(logger *log.Logger, cfg *config.Config) (*amqp.Client, []engine.Option) {
	if cfg.AMQPURL == "" {
		return nil, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without fan-out", log.FieldError, err)
		return nil, nil
	}
	logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client, []engine.Option{engine.WithNotifier(client)}
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when cleanup is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup ran.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
