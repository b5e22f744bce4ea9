package main

import (
	"context"
	"errors"
	"os"
	"time"

	"budgettable/internal/amqp"
	"budgettable/internal/backend"
	"budgettable/internal/cache"
	"budgettable/internal/cli"
	"budgettable/internal/config"
	"budgettable/internal/log"
	"budgettable/internal/worker"
)

const seenCleanupInterval = 10 * time.Minute

func main() {
	cli.LoadEnvFile()

	bootLogger := cli.SetupLogger("info", "text")
	cfg := cli.LoadAndValidateConfig(bootLogger, (*config.Config).ValidateWorker)
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat).WithComponent(log.ComponentWorker)

	logger.Info("Starting budgettable-worker", "exchange_backend", cfg.ExchangeBackend)

	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()

	exporterConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid exporter configuration", log.FieldError, err)
		os.Exit(1)
	}
	exporter, err := backend.NewFactory(logger).CreateExporter(ctx, exporterConfig)
	if err != nil {
		logger.Error("Failed to initialize exporter", log.FieldError, err, "backend", cfg.ExchangeBackend)
		os.Exit(1)
	}
	if exporter.Cleanup != nil {
		defer func() {
			if err := exporter.Cleanup(); err != nil {
				logger.Error("Exporter cleanup failed", log.FieldError, err)
			}
		}()
	}

	seen := cache.NewLRUCache[time.Time](worker.DefaultSeenSize, worker.DefaultSeenTTL)
	caches := cache.NewManager(logger)
	caches.Register(seen)
	caches.StartCleanup(seenCleanupInterval)
	defer caches.Stop()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	w := worker.NewExchangeWorker(exporter.Exporter, seen, logger)
	if err := w.Run(ctx, client); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Exchange worker failed", log.FieldError, err)
		os.Exit(1)
	}

	logger.Info("Worker shutdown complete")
}
