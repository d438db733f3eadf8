package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/utils"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEcho(development bool) *echo.Echo {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	e := echo.New()
	e.HTTPErrorHandler = Error(logger, development)
	e.Use(Context(), Logger(logger))
	return e
}

func do(e *echo.Echo, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var res ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestContext_RequestID(t *testing.T) {
	e := newEcho(false)
	var seen string
	e.GET("/ping", func(c echo.Context) error {
		seen = context.GetRequestID(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	})

	t.Run("generated when missing", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/ping", nil)
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(echo.HeaderXRequestID))
	})

	t.Run("propagated when sent", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/ping", http.Header{echo.HeaderXRequestID: {"req-123"}})
		assert.Equal(t, "req-123", seen)
		assert.Equal(t, "req-123", rec.Header().Get(echo.HeaderXRequestID))
	})
}

func TestError_UnknownRoutes(t *testing.T) {
	e := newEcho(false)
	e.POST("/identify", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/missing"},
		{http.MethodGet, "/identify"},
		{http.MethodDelete, "/identify"},
	} {
		rec := do(e, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, "%s %s", tc.method, tc.path)
		assert.Equal(t, "Not Found", errorBody(t, rec).Error)
	}
}

func TestError_Mapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		dev     bool
		code    int
		error   string
		message string
	}{
		{
			name:  "validation",
			err:   utils.NewValidationError(utils.FieldError{Path: "email", Message: "Invalid email format"}),
			code:  http.StatusBadRequest,
			error: "Validation Error",
		},
		{
			name:  "http error",
			err:   httperror.NewHTTPError(http.StatusServiceUnavailable, "reconciliation timed out"),
			code:  http.StatusServiceUnavailable,
			error: "reconciliation timed out",
		},
		{
			name:  "echo error keeps its message",
			err:   echo.NewHTTPError(http.StatusUnauthorized, "token expired"),
			code:  http.StatusUnauthorized,
			error: "token expired",
		},
		{
			name:  "unexpected error in production",
			err:   assert.AnError,
			code:  http.StatusInternalServerError,
			error: "Internal Server Error",
		},
		{
			name:    "unexpected error in development",
			err:     assert.AnError,
			dev:     true,
			code:    http.StatusInternalServerError,
			error:   "Internal Server Error",
			message: assert.AnError.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEcho(tt.dev)
			e.GET("/fail", func(c echo.Context) error { return tt.err })

			rec := do(e, http.MethodGet, "/fail", nil)

			require.Equal(t, tt.code, rec.Code)
			res := errorBody(t, rec)
			assert.Equal(t, tt.error, res.Error)
			assert.Equal(t, tt.message, res.Message)
			assert.NotEmpty(t, res.RequestID)
		})
	}
}

func TestError_HeadHasNoBody(t *testing.T) {
	e := newEcho(false)
	e.HEAD("/fail", func(c echo.Context) error { return assert.AnError })

	rec := do(e, http.MethodHead, "/fail", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestLogger_CountsRequests(t *testing.T) {
	e := newEcho(false)
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	ok := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/ping", "200")
	before := testutil.ToFloat64(ok)

	do(e, http.MethodGet, "/ping", nil)
	do(e, http.MethodGet, "/ping", nil)

	assert.Equal(t, before+2, testutil.ToFloat64(ok))
}
