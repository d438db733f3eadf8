package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is a dependency the readiness check can reach
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a plain ping function to Pinger
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// Checker handles health check endpoints
type Checker struct {
	checks    map[string]Pinger
	startTime time.Time
	ready     atomic.Bool
	now       func() time.Time
}

// NewChecker creates a health checker over the named dependencies
func NewChecker(checks map[string]Pinger) *Checker {
	if checks == nil {
		checks = map[string]Pinger{}
	}
	return &Checker{
		checks:    checks,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// SetReady sets the readiness state
func (c *Checker) SetReady(ready bool) {
	c.ready.Store(ready)
}

// RegisterRoutes registers health check endpoints
func (c *Checker) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", c.Health)
	e.GET("/health/live", c.Live)
	e.GET("/health/ready", c.Ready)
}

// TimestampFormat is ISO 8601 in UTC with milliseconds
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

type Status struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadyStatus represents the readiness response
type ReadyStatus struct {
	Status string                  `json:"status"`
	Uptime string                  `json:"uptime"`
	Checks map[string]*CheckResult `json:"checks"`
}

// CheckResult represents an individual check result
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Health reports that the process is serving
func (c *Checker) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, Status{
		Status:    "ok",
		Timestamp: c.now().UTC().Format(TimestampFormat),
	})
}

// Live returns the liveness status (is the service running)
func (c *Checker) Live(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

// Ready reports whether startup finished and every dependency answers
func (c *Checker) Ready(ctx echo.Context) error {
	status := &ReadyStatus{
		Status: "ready",
		Uptime: time.Since(c.startTime).Round(time.Second).String(),
		Checks: make(map[string]*CheckResult, len(c.checks)),
	}
	if !c.ready.Load() {
		status.Status = "not ready"
	}

	reqCtx, cancel := context.WithTimeout(ctx.Request().Context(), 2*time.Second)
	defer cancel()

	for name, check := range c.checks {
		start := time.Now()
		err := check.PingContext(reqCtx)
		latency := time.Since(start)

		if err != nil {
			status.Status = "not ready"
			status.Checks[name] = &CheckResult{
				Status:  "unhealthy",
				Message: err.Error(),
			}
			continue
		}
		status.Checks[name] = &CheckResult{
			Status:  "healthy",
			Latency: latency.String(),
		}
	}

	if status.Status != "ready" {
		return ctx.JSON(http.StatusServiceUnavailable, status)
	}
	return ctx.JSON(http.StatusOK, status)
}
