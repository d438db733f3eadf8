package identity

import (
	"context"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/cockroachdb/errors"
)

// findMatches returns every live contact sharing the request's email or phone
func (e *Engine) findMatches(ctx context.Context, req models.IdentifyRequest) ([]models.Contact, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.Engine.findMatches")
	defer span.End()

	matches, err := e.store.FindByEmailOrPhone(ctx, req.Email, req.PhoneNumber)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find matching contacts")
	}
	return matches, nil
}
