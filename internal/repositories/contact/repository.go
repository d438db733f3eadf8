package contact

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/identity"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/cockroachdb/errors"
	"github.com/huandu/go-sqlbuilder"
)

const tableName = "contact"

var columns = []string{
	"id",
	"phone_number",
	"email",
	"linked_id",
	"link_precedence",
	"created_at",
	"updated_at",
	"deleted_at",
}

var (
	_ identity.ContactStore = (*Repository)(nil)
	_ identity.Locker       = (*Repository)(nil)
)

// Repository is the Postgres Contact Store. It also serves as the advisory
// lock backend: identifier locks live as long as the surrounding transaction.
type Repository struct {
	db          database.DB
	logger      ectologger.Logger
	lockTimeout time.Duration
}

// NewRepository creates a new contact repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// WithLockTimeout bounds how long Acquire waits for an advisory lock. A wait
// that times out is reported as a conflict and the reconciliation is retried.
func (r *Repository) WithLockTimeout(d time.Duration) *Repository {
	r.lockTimeout = d
	return r
}

func (r *Repository) DB() database.DB {
	return r.db
}

// InTx runs fn in a READ COMMITTED transaction carried by ctx
func (r *Repository) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	err := r.db.InTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, fn)
	if err != nil && database.IsConflict(err) && !identity.IsConflict(err) {
		return identity.Conflict(err)
	}
	return err
}

// Acquire takes one transaction-scoped advisory lock per key, in the given order
func (r *Repository) Acquire(ctx context.Context, keys []string) (identity.ReleaseFunc, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.Acquire")
	defer span.End()

	release := func(context.Context) {}
	if len(keys) == 0 {
		return release, nil
	}
	if database.TxFromContext(ctx) == nil {
		return nil, errors.New("advisory identifier locks require a transaction")
	}

	conn := r.db.Conn(ctx)
	if r.lockTimeout > 0 {
		timeout := fmt.Sprintf("%dms", r.lockTimeout.Milliseconds())
		if _, err := conn.ExecContext(ctx, "SELECT set_config('lock_timeout', $1, true)", timeout); err != nil {
			return nil, r.fail(ctx, err, "failed to set lock timeout")
		}
	}

	for _, key := range keys {
		if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", key); err != nil {
			return nil, r.fail(ctx, err, "failed to acquire identifier lock")
		}
	}

	return release, nil
}

// FindByEmailOrPhone returns live contacts matching the email or the phone number
func (r *Repository) FindByEmailOrPhone(ctx context.Context, email, phone *string) ([]models.Contact, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.FindByEmailOrPhone")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)

	var conditions []string
	if email != nil {
		conditions = append(conditions, sb.Equal("email", *email))
	}
	if phone != nil {
		conditions = append(conditions, sb.Equal("phone_number", *phone))
	}
	if len(conditions) == 0 {
		return nil, nil
	}

	sb.Where(
		sb.IsNull("deleted_at"),
		sb.Or(conditions...),
	)
	sb.OrderBy("created_at ASC", "id ASC")

	query, args := sb.Build()

	var contacts []models.Contact
	if err := r.db.Conn(ctx).SelectContext(ctx, &contacts, query, args...); err != nil {
		return nil, r.fail(ctx, err, "failed to find contacts by email or phone")
	}

	return contacts, nil
}

// GetByIDs returns the live contacts with the given ids
func (r *Repository) GetByIDs(ctx context.Context, ids []int64, forUpdate bool) ([]models.Contact, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.GetByIDs")
	defer span.End()

	if len(ids) == 0 {
		return nil, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(
		sb.In("id", sqlbuilder.Flatten(ids)...),
		sb.IsNull("deleted_at"),
	)
	sb.OrderBy("id ASC")

	query, args := sb.Build()
	if forUpdate {
		// lock in id order so concurrent merges queue instead of deadlocking
		query += " FOR UPDATE"
	}

	var contacts []models.Contact
	if err := r.db.Conn(ctx).SelectContext(ctx, &contacts, query, args...); err != nil {
		return nil, r.fail(ctx, err, "failed to get contacts by ids")
	}

	return contacts, nil
}

// GetCluster returns the primary and its live secondaries, oldest first
func (r *Repository) GetCluster(ctx context.Context, primaryID int64) ([]models.Contact, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.GetCluster")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(
		sb.IsNull("deleted_at"),
		sb.Or(
			sb.Equal("id", primaryID),
			sb.Equal("linked_id", primaryID),
		),
	)
	sb.OrderBy("created_at ASC", "id ASC")

	query, args := sb.Build()

	var contacts []models.Contact
	if err := r.db.Conn(ctx).SelectContext(ctx, &contacts, query, args...); err != nil {
		return nil, r.fail(ctx, err, "failed to get contact cluster")
	}

	return contacts, nil
}

// Create inserts a contact and returns the stored row
func (r *Repository) Create(ctx context.Context, contact models.NewContact) (*models.Contact, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.Create")
	defer span.End()

	precedence := contact.LinkPrecedence
	if precedence == "" {
		precedence = models.LinkPrecedencePrimary
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto(tableName)
	sb.Cols("email", "phone_number", "linked_id", "link_precedence")
	sb.Values(contact.Email, contact.PhoneNumber, contact.LinkedID, string(precedence))
	sb.Returning(columns...)

	query, args := sb.Build()

	var created models.Contact
	if err := r.db.Conn(ctx).GetContext(ctx, &created, query, args...); err != nil {
		return nil, r.fail(ctx, err, "failed to create contact")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"contact_id":      created.ID,
		"link_precedence": created.LinkPrecedence,
		"linked_id":       created.LinkedID,
	}).Debug("created contact")

	return &created, nil
}

// Demote turns the given primaries into secondaries of primaryID. Rows that
// are already secondaries are left alone, so re-running it changes nothing.
func (r *Repository) Demote(ctx context.Context, ids []int64, primaryID int64, at time.Time) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.Demote")
	defer span.End()

	if len(ids) == 0 {
		return 0, nil
	}

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update(tableName)
	sb.Set(
		sb.Assign("link_precedence", string(models.LinkPrecedenceSecondary)),
		sb.Assign("linked_id", primaryID),
		sb.Assign("updated_at", at),
	)
	sb.Where(
		sb.In("id", sqlbuilder.Flatten(ids)...),
		sb.Equal("link_precedence", string(models.LinkPrecedencePrimary)),
	)

	query, args := sb.Build()
	result, err := r.db.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, r.fail(ctx, err, "failed to demote contacts")
	}

	rows, _ := result.RowsAffected()
	return rows, nil
}

// Relink re-points live secondaries of fromIDs at primaryID
func (r *Repository) Relink(ctx context.Context, fromIDs []int64, primaryID int64, at time.Time) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.Relink")
	defer span.End()

	if len(fromIDs) == 0 {
		return 0, nil
	}

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update(tableName)
	sb.Set(
		sb.Assign("linked_id", primaryID),
		sb.Assign("updated_at", at),
	)
	sb.Where(
		sb.In("linked_id", sqlbuilder.Flatten(fromIDs)...),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	result, err := r.db.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, r.fail(ctx, err, "failed to relink secondary contacts")
	}

	rows, _ := result.RowsAffected()
	return rows, nil
}

// fail logs a store error and wraps it, marking concurrency conflicts as retryable
func (r *Repository) fail(ctx context.Context, err error, msg string) error {
	if database.IsConflict(err) {
		r.logger.WithContext(ctx).WithError(err).WithField("sqlstate", string(database.PQCode(err))).Warn(msg)
		return identity.Conflict(errors.Wrap(err, msg))
	}
	r.logger.WithContext(ctx).WithError(err).Error(msg)
	return errors.Wrap(err, msg)
}
