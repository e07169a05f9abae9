package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"ledgerq/internal/cli"
	"ledgerq/internal/engine"
	"ledgerq/internal/ledger"
	"ledgerq/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("warn", "text", log.ComponentREPL)

	cfg := cli.LoadAndValidateConfig(logger)
	// Info logs would interleave with answers on stdout.
	level := cfg.LogLevel
	if level == "" || level == "info" {
		level = "warn"
	}
	logger = cli.SetupLogger(level, cfg.LogFormat, log.ComponentREPL)

	table := cli.LoadCategories(logger, cfg)
	store, cleanupStore := cli.InitStore(context.Background(), logger, cfg, table)
	gen := cli.InitGenerator(logger, cfg)
	notifier, opts := cli.InitNotifier(logger, cfg)
	opts = append(opts, engine.WithLogger(logger))
	eng := engine.New(ledger.NewBook(store, logger), table, gen, engine.ConfigFrom(cfg), opts...)

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			if notifier != nil {
				_ = notifier.Close()
			}
			if err := cleanupStore(); err != nil {
				logger.Warn("Failed to close ledger store", log.FieldError, err)
			}
		})
	}
	defer cleanup()

	ctx, done := cli.GracefulShutdown(logger, 5*time.Second, func(context.Context) { cleanup() })

	r := &repl{engine: eng, out: os.Stdout, now: time.Now}
	errCh := make(chan error, 1)
	go func() { errCh <- r.run(ctx, os.Stdin) }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Input error", log.FieldError, err)
		}
	case <-done:
		fmt.Println()
	}
}
