package identify

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Ramsey-B/fern/pkg/identity"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/utils"
	"github.com/labstack/echo/v4"
)

// Identifier is satisfied by *identity.Engine
type Identifier interface {
	Identify(ctx context.Context, req models.IdentifyRequest) (*identity.Result, error)
}

// Request is the /identify body. phoneNumber may be sent as a JSON number.
type Request struct {
	Email       *string                `json:"email" validate:"omitnil,email"`
	PhoneNumber *models.StringOrNumber `json:"phoneNumber" validate:"omitnil,min=1"`
}

func (r Request) Refine() []utils.FieldError {
	if r.Email == nil && r.PhoneNumber == nil {
		return []utils.FieldError{{Path: utils.RootPath, Message: identityRequiredMessage}}
	}
	return nil
}

func (r Request) ToIdentifyRequest() models.IdentifyRequest {
	return models.IdentifyRequest{
		Email:       r.Email,
		PhoneNumber: r.PhoneNumber.Ptr(),
	}
}

const identityRequiredMessage = "At least one of email or phoneNumber must be provided"

type Handler struct {
	identifier Identifier
	timeout    time.Duration
}

// NewHandler builds the handler. A positive timeout bounds each reconciliation.
func NewHandler(identifier Identifier, timeout time.Duration) *Handler {
	return &Handler{
		identifier: identifier,
		timeout:    timeout,
	}
}

func (h *Handler) Register(e *echo.Echo) {
	e.POST("/identify", h.Identify)
}

// Identify reconciles the posted email/phone and returns the consolidated contact
func (h *Handler) Identify(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "identify_handler.Identify")
	defer span.End()

	req, err := utils.BindRequest[Request](c)
	if err != nil {
		return err
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	result, err := h.identifier.Identify(ctx, req.ToIdentifyRequest())
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidRequest):
			return utils.NewValidationError(utils.FieldError{Path: utils.RootPath, Message: identityRequiredMessage})
		case errors.Is(err, context.DeadlineExceeded):
			return httperror.NewHTTPError(http.StatusServiceUnavailable, "reconciliation timed out")
		}
		return err
	}

	return c.JSON(http.StatusOK, models.IdentifyResponse{Contact: result.Contact})
}
