package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/routes/health"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fern: %v\n", err)
		os.Exit(1)
	}

	logger, syncLogs, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fern: failed to build logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Shutting down: fern cannot start")
		syncLogs()
		os.Exit(1)
	}
	syncLogs()
}

func run(cfg *config.Config, logger ectologger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		ServiceName: cfg.AppName,
		Exporter:    cfg.TracingExporter,
		SampleRatio: cfg.TracingSampleRatio,
		OTLP: exporters.OTLPConfig{
			Endpoint: cfg.OTLPEndpoint,
			Protocol: cfg.OTLPProtocol,
			Insecure: cfg.OTLPInsecure,
			Headers:  cfg.OTLPHeaders,
		},
	})
	if err != nil {
		return err
	}

	deps := &dependencies{cfg: cfg, logger: logger}
	s := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	deps.register(s)
	if err := s.Start(ctx); err != nil {
		return err
	}

	shutdownTimeout := time.Duration(cfg.ShutdownTimeoutSeconds) * time.Second
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.Stop(stopCtx); err != nil {
			logger.WithError(err).Error("Failed to stop dependencies")
		}
		if err := shutdownTracing(stopCtx); err != nil {
			logger.WithError(err).Warn("Failed to flush traces")
		}
	}()

	engine, err := deps.engine()
	if err != nil {
		return err
	}

	checker := health.NewChecker(deps.healthChecks())
	e := newEcho(cfg, logger, engine, checker)
	srv := newHTTPServer(cfg, e)

	logStartup(logger, cfg, deps, e)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()
	checker.SetReady(true)
	logger.Infof("Server ready on port %d", cfg.Port)

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutdown signal received, draining requests")
	checker.SetReady(false)

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("failed to drain http server: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}
