package identity

import (
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

type EventType string

const (
	EventContactCreated EventType = "contact.created"
	EventContactLinked  EventType = "contact.linked"
	EventContactMerged  EventType = "contact.merged"
)

// Event describes one committed change to a cluster
type Event struct {
	Type       EventType                  `json:"event_type"`
	PrimaryID  int64                      `json:"primary_contact_id"`
	ContactIDs []int64                    `json:"contact_ids"`
	Cluster    models.ConsolidatedContact `json:"cluster"`
	OccurredAt time.Time                  `json:"occurred_at"`
}

// Events derives the lifecycle events of a committed result
func (r *Result) Events(at time.Time) []Event {
	var events []Event

	if len(r.Demoted) > 0 {
		events = append(events, Event{
			Type:       EventContactMerged,
			PrimaryID:  r.Contact.PrimaryContactID,
			ContactIDs: append([]int64(nil), r.Demoted...),
			Cluster:    r.Contact,
			OccurredAt: at,
		})
	}

	if r.Created != nil {
		eventType := EventContactLinked
		if r.Created.IsPrimary() {
			eventType = EventContactCreated
		}
		events = append(events, Event{
			Type:       eventType,
			PrimaryID:  r.Contact.PrimaryContactID,
			ContactIDs: []int64{r.Created.ID},
			Cluster:    r.Contact,
			OccurredAt: at,
		})
	}

	return events
}
