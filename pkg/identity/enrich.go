package identity

import (
	"context"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/cockroachdb/errors"
)

// enrichCluster appends a secondary when the request carries an email or
// phone the cluster does not know yet. It returns the cluster with the new row
// appended and the created row, or the cluster unchanged and nil.
func (e *Engine) enrichCluster(ctx context.Context, req models.IdentifyRequest, primaryID int64, cluster []models.Contact) ([]models.Contact, *models.Contact, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.Engine.enrichCluster")
	defer span.End()

	if !HasNovelFact(req, cluster) {
		return cluster, nil, nil
	}

	created, err := e.store.Create(ctx, models.NewContact{
		Email:          req.Email,
		PhoneNumber:    req.PhoneNumber,
		LinkedID:       &primaryID,
		LinkPrecedence: models.LinkPrecedenceSecondary,
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create secondary contact")
	}

	return append(cluster, *created), created, nil
}

// HasNovelFact reports whether req carries an email or phone number that no
// member of cluster has.
func HasNovelFact(req models.IdentifyRequest, cluster []models.Contact) bool {
	emails := make(map[string]struct{}, len(cluster))
	phones := make(map[string]struct{}, len(cluster))
	for _, c := range cluster {
		if c.Email != nil && *c.Email != "" {
			emails[*c.Email] = struct{}{}
		}
		if c.PhoneNumber != nil && *c.PhoneNumber != "" {
			phones[*c.PhoneNumber] = struct{}{}
		}
	}

	if req.Email != nil {
		if _, ok := emails[*req.Email]; !ok {
			return true
		}
	}
	if req.PhoneNumber != nil {
		if _, ok := phones[*req.PhoneNumber]; !ok {
			return true
		}
	}
	return false
}
