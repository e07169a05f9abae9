package main

import (
	"context"
	"errors"
	"os"
	"time"

	"ledgerq/internal/amqp"
	"ledgerq/internal/cli"
	"ledgerq/internal/log"
	gsheet "ledgerq/internal/sheets/google"
	"ledgerq/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("info", "text", log.ComponentWorker)

	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel, cfg.LogFormat, log.ComponentWorker)
	if err := cfg.ValidateMirror(); err != nil {
		logger.Error("Mirror configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Starting ledgerq-worker", log.FieldOperation, log.OpStartup)

	table := cli.LoadCategories(logger, cfg)
	store, cleanupStore := cli.InitStore(context.Background(), logger, cfg, table)

	sheetsClient, err := gsheet.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	mirror := worker.NewMirrorWorker(store, sheetsClient, worker.DefaultConfig(), logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := mirror.Stop(ctx); err != nil {
			logger.Warn("Mirror worker stop error", log.FieldError, err)
		}
		if err := amqpClient.Close(); err != nil {
			logger.Warn("Failed to close AMQP client", log.FieldError, err)
		}
		if err := cleanupStore(); err != nil {
			logger.Warn("Failed to close ledger store", log.FieldError, err)
		}
	})

	// Start reconciles once before the periodic loop, covering deltas
	// published while the worker was down.
	if err := mirror.Start(ctx); err != nil {
		logger.Error("Failed to start mirror worker", log.FieldError, err)
		os.Exit(1)
	}

	go func() {
		err := amqpClient.ConsumeWithRetry(ctx, mirror.HandleDelta)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Delta consumption stopped", log.FieldError, err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
