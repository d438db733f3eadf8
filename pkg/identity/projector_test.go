package identity

import (
	"testing"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/stretchr/testify/assert"
)

func sp(s string) *string { return &s }

func row(id int64, email, phone *string) models.Contact {
	return models.Contact{ID: id, Email: email, PhoneNumber: phone}
}

func TestProject(t *testing.T) {
	tests := []struct {
		name      string
		primaryID int64
		cluster   []models.Contact
		expected  models.ConsolidatedContact
	}{
		{
			name:      "lone primary with email only",
			primaryID: 1,
			cluster:   []models.Contact{row(1, sp("a@x.com"), nil)},
			expected: models.ConsolidatedContact{
				PrimaryContactID:    1,
				Emails:              []string{"a@x.com"},
				PhoneNumbers:        []string{},
				SecondaryContactIDs: []int64{},
			},
		},
		{
			name:      "primary values lead even when the primary is listed later",
			primaryID: 7,
			cluster: []models.Contact{
				row(8, sp("b@x.com"), sp("222")),
				row(7, sp("a@x.com"), sp("111")),
			},
			expected: models.ConsolidatedContact{
				PrimaryContactID:    7,
				Emails:              []string{"a@x.com", "b@x.com"},
				PhoneNumbers:        []string{"111", "222"},
				SecondaryContactIDs: []int64{8},
			},
		},
		{
			name:      "duplicates, nulls and empty strings are dropped",
			primaryID: 1,
			cluster: []models.Contact{
				row(1, sp("a@x.com"), nil),
				row(2, sp("a@x.com"), sp("")),
				row(3, nil, sp("111")),
				row(4, sp(""), sp("111")),
			},
			expected: models.ConsolidatedContact{
				PrimaryContactID:    1,
				Emails:              []string{"a@x.com"},
				PhoneNumbers:        []string{"111"},
				SecondaryContactIDs: []int64{2, 3, 4},
			},
		},
		{
			name:      "secondary values keep cluster order",
			primaryID: 1,
			cluster: []models.Contact{
				row(1, nil, sp("1")),
				row(3, sp("c@x.com"), nil),
				row(2, sp("b@x.com"), sp("2")),
			},
			expected: models.ConsolidatedContact{
				PrimaryContactID:    1,
				Emails:              []string{"c@x.com", "b@x.com"},
				PhoneNumbers:        []string{"1", "2"},
				SecondaryContactIDs: []int64{3, 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Project(tt.primaryID, tt.cluster))
		})
	}
}

func TestHasNovelFact(t *testing.T) {
	cluster := []models.Contact{
		row(1, sp("a@x.com"), sp("111")),
		row(2, nil, sp("222")),
	}

	tests := []struct {
		name     string
		req      models.IdentifyRequest
		expected bool
	}{
		{name: "known email", req: models.IdentifyRequest{Email: sp("a@x.com")}, expected: false},
		{name: "known phone on a secondary", req: models.IdentifyRequest{PhoneNumber: sp("222")}, expected: false},
		{name: "known email and phone from different rows", req: models.IdentifyRequest{Email: sp("a@x.com"), PhoneNumber: sp("222")}, expected: false},
		{name: "new email", req: models.IdentifyRequest{Email: sp("b@x.com"), PhoneNumber: sp("111")}, expected: true},
		{name: "new phone", req: models.IdentifyRequest{Email: sp("a@x.com"), PhoneNumber: sp("333")}, expected: true},
		{name: "email is case sensitive", req: models.IdentifyRequest{Email: sp("A@x.com")}, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HasNovelFact(tt.req, cluster))
		})
	}
}

func TestSortByAge(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	contacts := []models.Contact{
		{ID: 4, CreatedAt: base.Add(time.Hour)},
		{ID: 9, CreatedAt: base},
		{ID: 2, CreatedAt: base.Add(time.Hour)},
		{ID: 5, CreatedAt: base},
	}

	SortByAge(contacts)

	var ids []int64
	for _, c := range contacts {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []int64{5, 9, 2, 4}, ids)
}

func TestIdentifierKeys(t *testing.T) {
	assert.Equal(t, []string{"email:a@x.com", "phone:111"}, IdentifierKeys(models.IdentifyRequest{Email: sp("a@x.com"), PhoneNumber: sp("111")}))
	assert.Equal(t, []string{"phone:111"}, IdentifierKeys(models.IdentifyRequest{PhoneNumber: sp("111")}))
	assert.Empty(t, IdentifierKeys(models.IdentifyRequest{}))
}

func TestResultEvents(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	view := models.ConsolidatedContact{PrimaryContactID: 1}

	t.Run("matched emits nothing", func(t *testing.T) {
		r := &Result{Contact: view, Outcome: OutcomeMatched}
		assert.Empty(t, r.Events(at))
	})

	t.Run("new primary", func(t *testing.T) {
		r := &Result{Contact: view, Created: &models.Contact{ID: 1, LinkPrecedence: models.LinkPrecedencePrimary}}
		events := r.Events(at)
		if assert.Len(t, events, 1) {
			assert.Equal(t, EventContactCreated, events[0].Type)
			assert.Equal(t, []int64{1}, events[0].ContactIDs)
			assert.Equal(t, at, events[0].OccurredAt)
		}
	})

	t.Run("merge then link", func(t *testing.T) {
		r := &Result{
			Contact: view,
			Demoted: []int64{2, 3},
			Created: &models.Contact{ID: 4, LinkPrecedence: models.LinkPrecedenceSecondary},
		}
		events := r.Events(at)
		if assert.Len(t, events, 2) {
			assert.Equal(t, EventContactMerged, events[0].Type)
			assert.Equal(t, []int64{2, 3}, events[0].ContactIDs)
			assert.Equal(t, EventContactLinked, events[1].Type)
			assert.Equal(t, int64(1), events[1].PrimaryID)
		}
	})
}
