package contact

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/Gobusters/ectolinq"
	"github.com/Ramsey-B/fern/pkg/identity"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/cockroachdb/errors"
)

var _ identity.ContactStore = (*MemoryRepository)(nil)

type memoryTxKey struct{}

// MemoryRepository is an in-process Contact Store for local runs and tests.
// Transactions are serialized; a failed transaction restores the rows it saw
// at begin. Ids handed out by a rolled back transaction are not reused.
type MemoryRepository struct {
	txMu   sync.Mutex
	rows   []models.Contact
	nextID int64
	now    func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		nextID: 1,
		now:    time.Now,
	}
}

// WithClock sets the clock used for created_at and updated_at
func (r *MemoryRepository) WithClock(now func() time.Time) *MemoryRepository {
	r.now = now
	return r
}

// Seed stores contacts as given, ids and timestamps included
func (r *MemoryRepository) Seed(contacts ...models.Contact) {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	for _, c := range contacts {
		r.rows = append(r.rows, c)
		if c.ID >= r.nextID {
			r.nextID = c.ID + 1
		}
	}
	sort.Slice(r.rows, func(i, j int) bool { return r.rows[i].ID < r.rows[j].ID })
}

// Tombstone soft-deletes a contact
func (r *MemoryRepository) Tombstone(id int64) bool {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	for i := range r.rows {
		if r.rows[i].ID == id {
			at := r.now().UTC()
			r.rows[i].DeletedAt = &at
			return true
		}
	}
	return false
}

// Contacts returns every stored row, tombstones included, ordered by id
func (r *MemoryRepository) Contacts() []models.Contact {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	return slices.Clone(r.rows)
}

func (r *MemoryRepository) InTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if inMemoryTx(ctx) {
		return fn(ctx)
	}

	r.txMu.Lock()
	defer r.txMu.Unlock()

	snapshot := slices.Clone(r.rows)
	defer func() {
		if p := recover(); p != nil {
			r.rows = snapshot
			panic(p)
		}
		if err != nil {
			r.rows = snapshot
		}
	}()

	return fn(context.WithValue(ctx, memoryTxKey{}, true))
}

func (r *MemoryRepository) FindByEmailOrPhone(ctx context.Context, email, phone *string) ([]models.Contact, error) {
	var out []models.Contact
	err := r.read(ctx, func() {
		if email == nil && phone == nil {
			return
		}
		for _, c := range r.rows {
			if c.DeletedAt != nil {
				continue
			}
			if equalPtr(c.Email, email) || equalPtr(c.PhoneNumber, phone) {
				out = append(out, c)
			}
		}
		identity.SortByAge(out)
	})
	return out, err
}

func (r *MemoryRepository) GetByIDs(ctx context.Context, ids []int64, forUpdate bool) ([]models.Contact, error) {
	var out []models.Contact
	err := r.read(ctx, func() {
		for _, c := range r.rows {
			if c.DeletedAt == nil && ectolinq.Contains(ids, c.ID) {
				out = append(out, c)
			}
		}
	})
	return out, err
}

func (r *MemoryRepository) GetCluster(ctx context.Context, primaryID int64) ([]models.Contact, error) {
	var out []models.Contact
	err := r.read(ctx, func() {
		for _, c := range r.rows {
			if c.DeletedAt != nil {
				continue
			}
			if c.ID == primaryID || (c.LinkedID != nil && *c.LinkedID == primaryID) {
				out = append(out, c)
			}
		}
		identity.SortByAge(out)
	})
	return out, err
}

func (r *MemoryRepository) Create(ctx context.Context, contact models.NewContact) (*models.Contact, error) {
	if !inMemoryTx(ctx) {
		return nil, errors.New("memory contact store writes require a transaction")
	}

	precedence := contact.LinkPrecedence
	if precedence == "" {
		precedence = models.LinkPrecedencePrimary
	}
	if precedence == models.LinkPrecedenceSecondary && contact.LinkedID == nil {
		return nil, errors.New("secondary contact requires a linked contact")
	}

	now := r.now().UTC()
	created := models.Contact{
		ID:             r.nextID,
		Email:          cloneStr(contact.Email),
		PhoneNumber:    cloneStr(contact.PhoneNumber),
		LinkedID:       cloneID(contact.LinkedID),
		LinkPrecedence: precedence,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.nextID++
	r.rows = append(r.rows, created)

	return &created, nil
}

func (r *MemoryRepository) Demote(ctx context.Context, ids []int64, primaryID int64, at time.Time) (int64, error) {
	if !inMemoryTx(ctx) {
		return 0, errors.New("memory contact store writes require a transaction")
	}

	var n int64
	for i := range r.rows {
		c := &r.rows[i]
		if !c.IsPrimary() || !ectolinq.Contains(ids, c.ID) {
			continue
		}
		c.LinkPrecedence = models.LinkPrecedenceSecondary
		c.LinkedID = cloneID(&primaryID)
		c.UpdatedAt = at
		n++
	}
	return n, nil
}

func (r *MemoryRepository) Relink(ctx context.Context, fromIDs []int64, primaryID int64, at time.Time) (int64, error) {
	if !inMemoryTx(ctx) {
		return 0, errors.New("memory contact store writes require a transaction")
	}

	var n int64
	for i := range r.rows {
		c := &r.rows[i]
		if c.DeletedAt != nil || c.LinkedID == nil || !ectolinq.Contains(fromIDs, *c.LinkedID) {
			continue
		}
		c.LinkedID = cloneID(&primaryID)
		c.UpdatedAt = at
		n++
	}
	return n, nil
}

// read runs fn under the store lock unless ctx already holds it
func (r *MemoryRepository) read(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if inMemoryTx(ctx) {
		fn()
		return nil
	}
	r.txMu.Lock()
	defer r.txMu.Unlock()
	fn()
	return nil
}

func inMemoryTx(ctx context.Context) bool {
	v, _ := ctx.Value(memoryTxKey{}).(bool)
	return v
}

func equalPtr(stored, want *string) bool {
	return stored != nil && want != nil && *stored == *want
}

func cloneStr(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}

func cloneID(v *int64) *int64 {
	if v == nil {
		return nil
	}
	id := *v
	return &id
}
