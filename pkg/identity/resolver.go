package identity

import (
	"context"
	"sort"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/cockroachdb/errors"
)

// maxRootHops bounds re-resolution when a fetched root was demoted by a
// concurrent merge that committed while we waited for its row lock.
const maxRootHops = 2

// resolveCluster maps matches to their distinct roots, locks them, and splits
// them into the true primary and the contenders that must be merged into it.
func (e *Engine) resolveCluster(ctx context.Context, matches []models.Contact) (*models.Contact, []models.Contact, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.Engine.resolveCluster")
	defer span.End()

	if len(matches) == 0 {
		return nil, nil, nil
	}

	rootIDs := make([]int64, 0, len(matches))
	for _, c := range matches {
		root := c.RootID()
		if root == nil {
			return nil, nil, integrityf("secondary contact %d has no linked contact", c.ID)
		}
		rootIDs = append(rootIDs, *root)
	}

	roots, err := e.fetchRoots(ctx, distinctIDs(rootIDs))
	if err != nil {
		return nil, nil, err
	}

	SortByAge(roots)
	truePrimary := roots[0]
	return &truePrimary, roots[1:], nil
}

// fetchRoots loads and locks the root rows. A row that turns out to be a
// secondary is replaced by its own root until every fetched row is a primary.
func (e *Engine) fetchRoots(ctx context.Context, ids []int64) ([]models.Contact, error) {
	for hop := 0; ; hop++ {
		rows, err := e.store.GetByIDs(ctx, ids, true)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load cluster roots")
		}

		found := make(map[int64]models.Contact, len(rows))
		for _, r := range rows {
			found[r.ID] = r
		}

		var next []int64
		roots := make([]models.Contact, 0, len(ids))
		for _, id := range ids {
			row, ok := found[id]
			if !ok {
				return nil, integrityf("cluster root %d not found", id)
			}
			if row.IsPrimary() {
				roots = append(roots, row)
				continue
			}
			if row.LinkedID == nil {
				return nil, integrityf("secondary contact %d has no linked contact", row.ID)
			}
			next = append(next, *row.LinkedID)
		}

		if len(next) == 0 {
			return roots, nil
		}
		if hop >= maxRootHops {
			return nil, integrityf("cluster roots %v still resolve to secondaries", next)
		}

		for _, r := range roots {
			next = append(next, r.ID)
		}
		ids = distinctIDs(next)
	}
}

// SortByAge orders contacts by createdAt, ties broken by the smaller id
func SortByAge(contacts []models.Contact) {
	sort.SliceStable(contacts, func(i, j int) bool {
		a, b := contacts[i], contacts[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func distinctIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
