package identity

import (
	"context"

	"github.com/Gobusters/ectolinq"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/cockroachdb/errors"
)

type mergeResult struct {
	demoted  []int64
	relinked int64
}

// mergeClusters flattens the contender clusters into the true primary's.
// Contenders are demoted first, then any secondary still pointing at a
// contender is re-pointed, so no secondary-to-secondary link survives.
func (e *Engine) mergeClusters(ctx context.Context, truePrimary models.Contact, contenders []models.Contact) (*mergeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.Engine.mergeClusters")
	defer span.End()

	if len(contenders) == 0 {
		return &mergeResult{}, nil
	}

	ids := ectolinq.Map(contenders, func(c models.Contact) int64 { return c.ID })
	now := e.now().UTC()

	if _, err := e.store.Demote(ctx, ids, truePrimary.ID, now); err != nil {
		return nil, errors.Wrapf(err, "failed to demote contacts %v", ids)
	}

	relinked, err := e.store.Relink(ctx, ids, truePrimary.ID, now)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to relink secondaries of %v", ids)
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"primary_contact_id": truePrimary.ID,
		"demoted_ids":        ids,
		"relinked_count":     relinked,
	}).Info("merged contact clusters")

	return &mergeResult{demoted: ids, relinked: relinked}, nil
}
