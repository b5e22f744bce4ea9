package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"budgettable/internal/amqp"
	"budgettable/internal/cli"
	"budgettable/internal/config"
	apphttp "budgettable/internal/http"
	"budgettable/internal/log"
	"budgettable/internal/notify"
	"budgettable/internal/services"
)

func main() {
	cli.LoadEnvFile()

	bootLogger := cli.SetupLogger("info", "text")
	cfg := cli.LoadAndValidateConfig(bootLogger, (*config.Config).Validate)
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()

	repo := cli.InitSQLite(ctx, logger, cfg.SQLiteDBPath)

	var publisher notify.Publisher = notify.NewLogPublisher(logger)
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, change notifications will only be logged", log.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("Publishing change notifications over AMQP",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP_URL not set, change notifications will only be logged")
	}

	dispatcher := notify.NewDispatcher(publisher, cfg.NotifyBufferSize, cfg.NotifyTimeout, logger)
	svc := services.NewTableService(repo, dispatcher)
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close table service", log.FieldError, err)
		}
	}()

	srv := apphttp.NewServer(cfg.Addr(), svc, apphttp.Options{
		Logger:            logger,
		AllowedOrigins:    cfg.CORSAllowedOrigins,
		TrustedProxies:    cfg.TrustedProxies,
		RequestsPerMinute: cfg.RateLimitPerMinute,
		NotifyStats:       dispatcher.Stats,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 70 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g, gctx := errgroup.WithContext(ctx)

	// The dispatcher outlives the request context so events raised by
	// in-flight requests are still delivered during shutdown.
	g.Go(func() error {
		return dispatcher.Run(context.WithoutCancel(gctx))
	})

	g.Go(func() error {
		logger.Info("Starting budget table server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", srv.Addr, err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", log.FieldOperation, log.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		dispatcher.Close()
		if err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err)
		os.Exit(1)
	}

	st := dispatcher.Stats()
	logger.Info("Server stopped gracefully",
		"notifications_delivered", st.Delivered,
		"notifications_failed", st.Failed,
		"notifications_dropped", st.Dropped)
}
