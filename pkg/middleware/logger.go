package middleware

import (
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/labstack/echo/v4"
)

// Logger writes one access-log line per request and counts it by route
// template. Requests that matched no route are counted as "unmatched".
func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			start := time.Now()
			if err = next(c); err != nil {
				c.Error(err)
			}
			elapsed := time.Since(start)

			req, res := c.Request(), c.Response()
			ctx := req.Context()

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.RecordHTTPRequest(req.Method, route, strconv.Itoa(res.Status))

			fields := context.Fields(ctx)
			fields["method"] = req.Method
			fields["route"] = route
			fields["uri"] = req.RequestURI
			fields["status"] = res.Status
			fields["remote_ip"] = context.GetRemoteIP(ctx)
			fields["user_agent"] = req.UserAgent()
			fields["response_time"] = elapsed
			fields["request_size"] = req.Header.Get(echo.HeaderContentLength)
			fields["response_size"] = strconv.FormatInt(res.Size, 10)

			logger.WithContext(ctx).WithFields(fields).Info("Request")
			return nil
		}
	}
}
