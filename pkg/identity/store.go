package identity

import (
	"context"
	"sort"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

// ContactStore is the persistence contract the engine runs against.
// Every method except InTx must be called with a ctx obtained inside InTx.
type ContactStore interface {
	// InTx runs fn in one transaction. Nested calls join the outer transaction.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	// FindByEmailOrPhone returns non-tombstoned contacts whose email equals
	// email or whose phone_number equals phone. Nil arguments are left out.
	FindByEmailOrPhone(ctx context.Context, email, phone *string) ([]models.Contact, error)

	// GetByIDs returns the non-tombstoned contacts with the given ids. With
	// forUpdate the rows stay locked until the transaction ends.
	GetByIDs(ctx context.Context, ids []int64, forUpdate bool) ([]models.Contact, error)

	// GetCluster returns the primary and its non-tombstoned secondaries ordered
	// by created_at, id.
	GetCluster(ctx context.Context, primaryID int64) ([]models.Contact, error)

	Create(ctx context.Context, contact models.NewContact) (*models.Contact, error)

	// Demote turns the given primaries into secondaries of primaryID.
	Demote(ctx context.Context, ids []int64, primaryID int64, at time.Time) (int64, error)

	// Relink re-points non-tombstoned secondaries of fromIDs at primaryID.
	Relink(ctx context.Context, fromIDs []int64, primaryID int64, at time.Time) (int64, error)
}

// ReleaseFunc releases locks taken by a Locker. It runs after the transaction ends.
type ReleaseFunc func(ctx context.Context)

// Locker serializes reconciliations that share an identifying value.
// Acquire is called inside the transaction, before the Match Finder runs, and
// blocks until every key is held.
type Locker interface {
	Acquire(ctx context.Context, keys []string) (ReleaseFunc, error)
}

// EventSink receives lifecycle events after a reconciliation commits
type EventSink interface {
	Publish(ctx context.Context, events []Event) error
}

// IdentifierKeys returns the lock keys for a request in a stable order
func IdentifierKeys(req models.IdentifyRequest) []string {
	keys := make([]string, 0, 2)
	if req.Email != nil {
		keys = append(keys, "email:"+*req.Email)
	}
	if req.PhoneNumber != nil {
		keys = append(keys, "phone:"+*req.PhoneNumber)
	}
	sort.Strings(keys)
	return keys
}

type noopLocker struct{}

func (noopLocker) Acquire(ctx context.Context, keys []string) (ReleaseFunc, error) {
	return func(context.Context) {}, nil
}

type noopSink struct{}

func (noopSink) Publish(ctx context.Context, events []Event) error { return nil }
