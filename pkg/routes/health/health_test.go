package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(c *Checker, path string) *httptest.ResponseRecorder {
	e := echo.New()
	c.RegisterRoutes(e)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	c := NewChecker(nil)
	c.now = func() time.Time { return time.Date(2024, 5, 1, 10, 30, 0, 123000000, time.UTC) }

	rec := serve(c, "/health")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","timestamp":"2024-05-01T10:30:00.123Z"}`, rec.Body.String())
}

func TestLive(t *testing.T) {
	rec := serve(NewChecker(nil), "/health/live")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}

func TestReady(t *testing.T) {
	healthy := PingFunc(func(ctx context.Context) error { return nil })
	broken := PingFunc(func(ctx context.Context) error { return errors.New("connection refused") })

	t.Run("not ready before startup completes", func(t *testing.T) {
		rec := serve(NewChecker(map[string]Pinger{"database": healthy}), "/health/ready")

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("ready when every check passes", func(t *testing.T) {
		c := NewChecker(map[string]Pinger{"database": healthy, "redis": healthy})
		c.SetReady(true)

		rec := serve(c, "/health/ready")

		require.Equal(t, http.StatusOK, rec.Code)
		var status ReadyStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, "ready", status.Status)
		assert.Equal(t, "healthy", status.Checks["database"].Status)
		assert.Equal(t, "healthy", status.Checks["redis"].Status)
	})

	t.Run("a failing check reports not ready", func(t *testing.T) {
		c := NewChecker(map[string]Pinger{"database": healthy, "redis": broken})
		c.SetReady(true)

		rec := serve(c, "/health/ready")

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var status ReadyStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, "not ready", status.Status)
		assert.Equal(t, "unhealthy", status.Checks["redis"].Status)
		assert.Equal(t, "connection refused", status.Checks["redis"].Message)
	})
}
