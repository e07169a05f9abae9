package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"ledgerq/internal/cache"
	"ledgerq/internal/cli"
	"ledgerq/internal/engine"
	apphttp "ledgerq/internal/http"
	"ledgerq/internal/ledger"
	"ledgerq/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("info", "text", log.ComponentApp)

	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel, cfg.LogFormat, log.ComponentApp)

	table := cli.LoadCategories(logger, cfg)
	store, cleanupStore := cli.InitStore(context.Background(), logger, cfg, table)
	gen := cli.InitGenerator(logger, cfg)

	notifier, opts := cli.InitNotifier(logger, cfg)
	caches := cache.NewManager(logger)
	opts = append(opts, engine.WithLogger(logger), engine.WithCacheManager(caches))
	eng := engine.New(ledger.NewBook(store, logger), table, gen, engine.ConfigFrom(cfg), opts...)
	caches.StartCleanup(time.Minute)

	srv := apphttp.NewServer(apphttp.ServerConfig{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, eng, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if notifier != nil {
			if err := notifier.Close(); err != nil {
				logger.Warn("Failed to close AMQP client", log.FieldError, err)
			}
		}
		if err := cleanupStore(); err != nil {
			logger.Warn("Failed to close ledger store", log.FieldError, err)
		}
	})

	logger.Info("Starting ledgerq server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		log.FieldProvider, cfg.InferenceProvider,
		"fanout", notifier != nil,
		log.FieldOperation, log.OpStartup,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
