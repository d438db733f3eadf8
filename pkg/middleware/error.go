package middleware

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/utils"
	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error     string             `json:"error"`
	Message   string             `json:"message,omitempty"`
	Details   []utils.FieldError `json:"details,omitempty"`
	Meta      map[string]any     `json:"meta,omitempty"`
	RequestID string             `json:"request_id,omitempty"`
	TraceID   string             `json:"trace_id,omitempty"`
}

// Error renders every handler error as JSON. Internal faults expose their
// message only when development is set.
func Error(logger ectologger.Logger, development bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		ctx := c.Request().Context()
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		res := ErrorResponse{Error: "Internal Server Error"}

		var he *echo.HTTPError
		switch verr, isValidation := utils.AsValidationError(err); {
		case isValidation:
			code = http.StatusBadRequest
			res.Error = "Validation Error"
			res.Details = verr.Details
		case httperror.IsHTTPError(err):
			httperr := httperror.ToHTTPError(err)
			code = httperror.GetStatusCode(err)
			res.Error = httperr.Error()
			if len(httperr.Meta) > 0 {
				res.Meta = httperr.Meta
			}
		case errors.As(err, &he):
			code = he.Code
			if code == http.StatusMethodNotAllowed {
				// a known path with another method is still an unknown route
				code = http.StatusNotFound
			}
			res.Error = http.StatusText(code)
			if msg, ok := he.Message.(string); ok && code == he.Code && code != http.StatusNotFound {
				res.Error = msg
			}
		default:
			if development {
				res.Message = err.Error()
			}
		}

		log := logger.WithContext(ctx).WithError(err).WithFields(context.Fields(ctx)).WithField("status", code)
		if code >= http.StatusInternalServerError {
			log.Error("api is returning an error")
		} else {
			log.Warn("api is rejecting a request")
		}

		res.RequestID = context.GetRequestID(ctx)
		res.TraceID = tracing.GetTraceID(ctx)

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, res)
	}
}
