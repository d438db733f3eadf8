package main

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/routes/health"
	"github.com/Ramsey-B/fern/pkg/routes/identify"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

func newEcho(cfg *config.Config, logger ectologger.Logger, identifier identify.Identifier, checker *health.Checker) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger, cfg.IsDevelopment())

	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(echomiddleware.Recover())

	identify.NewHandler(identifier, cfg.ReconcileTimeout).Register(e)
	checker.RegisterRoutes(e)
	if cfg.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	return e
}

func newHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
}

// logStartup writes the environment, database and route diagnostics
func logStartup(logger ectologger.Logger, cfg *config.Config, deps *dependencies, e *echo.Echo) {
	logger.WithFields(map[string]any{
		"app_env":      cfg.AppEnv,
		"port":         cfg.Port,
		"store":        cfg.StoreDriver,
		"lock_backend": cfg.LockBackend,
		"events":       cfg.KafkaEnabled,
		"started_at":   time.Now().UTC().Format(time.RFC3339),
	}).Info("Environment")

	if deps.dbInfo != nil {
		logger.WithFields(map[string]any{
			"status":     "connected",
			"version":    deps.dbInfo.ShortVersion(),
			"database":   deps.dbInfo.Database,
			"user":       deps.dbInfo.User,
			"db_started": deps.dbInfo.StartedAt.Format(time.RFC3339),
			"url":        database.MaskURL(cfg.DSN()),
		}).Info("Database")
	}

	routes := make([]string, 0, len(e.Routes()))
	for _, r := range e.Routes() {
		routes = append(routes, fmt.Sprintf("%s %s", r.Method, r.Path))
	}
	sort.Strings(routes)
	logger.WithField("routes", routes).Info("Registered routes")
}
