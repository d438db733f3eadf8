package identity

import (
	"github.com/Ramsey-B/fern/pkg/models"
)

// Project builds the consolidated view of a cluster. The primary's email and
// phone lead; secondaries follow in cluster order; nulls, empty strings and
// repeats are dropped.
func Project(primaryID int64, cluster []models.Contact) models.ConsolidatedContact {
	view := models.ConsolidatedContact{
		PrimaryContactID:    primaryID,
		Emails:              []string{},
		PhoneNumbers:        []string{},
		SecondaryContactIDs: []int64{},
	}

	emails := newOrderedSet(&view.Emails)
	phones := newOrderedSet(&view.PhoneNumbers)

	for _, c := range cluster {
		if c.ID == primaryID {
			emails.add(c.Email)
			phones.add(c.PhoneNumber)
			break
		}
	}

	for _, c := range cluster {
		if c.ID == primaryID {
			continue
		}
		emails.add(c.Email)
		phones.add(c.PhoneNumber)
		view.SecondaryContactIDs = append(view.SecondaryContactIDs, c.ID)
	}

	return view
}

type orderedSet struct {
	seen map[string]struct{}
	out  *[]string
}

func newOrderedSet(out *[]string) *orderedSet {
	return &orderedSet{seen: map[string]struct{}{}, out: out}
}

func (s *orderedSet) add(v *string) {
	if v == nil || *v == "" {
		return
	}
	if _, ok := s.seen[*v]; ok {
		return
	}
	s.seen[*v] = struct{}{}
	*s.out = append(*s.out, *v)
}
