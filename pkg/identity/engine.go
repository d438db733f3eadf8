// Package identity reconciles incoming email/phone facts into contact clusters.
//
// A cluster is one primary contact plus flat secondaries linked to it. For
// each request the Engine finds every live contact sharing the email or phone,
// resolves their cluster roots, merges the clusters into the oldest root when
// more than one is implicated, appends a secondary when the request carries a
// value the cluster has not seen, and projects the final cluster into a
// ConsolidatedContact. All of it runs in one store transaction.
package identity

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/cockroachdb/errors"
)

// Outcome names what a reconciliation did to the store
type Outcome string

const (
	OutcomeCreated Outcome = "created" // no match, new primary
	OutcomeMatched Outcome = "matched" // nothing novel, no write
	OutcomeLinked  Outcome = "linked"  // new secondary under an existing primary
	OutcomeMerged  Outcome = "merged"  // contender primaries demoted
	OutcomeFailed  Outcome = "failed"
)

// Result is the committed outcome of one reconciliation
type Result struct {
	Contact  models.ConsolidatedContact
	Outcome  Outcome
	Created  *models.Contact
	Demoted  []int64
	Relinked int64
	Attempts int
}

// Options tunes the Engine. Zero values fall back to the defaults.
type Options struct {
	// MaxRetries is how many times a conflicting reconciliation is re-run.
	MaxRetries int
	// RetryBackoff is multiplied by the attempt number between retries.
	RetryBackoff time.Duration
	Locker       Locker
	Events       EventSink
	Now          func() time.Time
}

const (
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = 25 * time.Millisecond
)

type Engine struct {
	store        ContactStore
	locker       Locker
	events       EventSink
	logger       ectologger.Logger
	maxRetries   int
	retryBackoff time.Duration
	now          func() time.Time
}

func NewEngine(store ContactStore, logger ectologger.Logger, opts Options) *Engine {
	e := &Engine{
		store:        store,
		locker:       opts.Locker,
		events:       opts.Events,
		logger:       logger,
		maxRetries:   opts.MaxRetries,
		retryBackoff: opts.RetryBackoff,
		now:          opts.Now,
	}
	if e.locker == nil {
		e.locker = noopLocker{}
	}
	if e.events == nil {
		e.events = noopSink{}
	}
	if e.maxRetries < 0 {
		e.maxRetries = 0
	} else if e.maxRetries == 0 {
		e.maxRetries = DefaultMaxRetries
	}
	if e.retryBackoff <= 0 {
		e.retryBackoff = DefaultRetryBackoff
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Identify reconciles req and returns the consolidated cluster it belongs to.
// A conflict with a concurrent reconciliation re-runs the whole operation, up
// to MaxRetries times; the re-run observes the other writer's rows.
func (e *Engine) Identify(ctx context.Context, req models.IdentifyRequest) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.Engine.Identify")
	defer span.End()

	if req.Email == nil && req.PhoneNumber == nil {
		return nil, ErrInvalidRequest
	}

	start := time.Now()
	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"has_email": req.Email != nil,
		"has_phone": req.PhoneNumber != nil,
	})

	for attempt := 1; ; attempt++ {
		result, err := e.reconcile(ctx, req)
		if err == nil {
			result.Attempts = attempt
			metrics.RecordReconciliation(string(result.Outcome), time.Since(start))
			metrics.RecordDemotions(len(result.Demoted))
			log.WithFields(map[string]any{
				"outcome":            result.Outcome,
				"primary_contact_id": result.Contact.PrimaryContactID,
				"secondary_count":    len(result.Contact.SecondaryContactIDs),
				"attempt":            attempt,
			}).Info("reconciled contact")
			e.publish(ctx, result)
			return result, nil
		}

		if IsIntegrity(err) {
			metrics.RecordIntegrityFault()
		}

		if !IsConflict(err) || attempt > e.maxRetries || ctx.Err() != nil {
			metrics.RecordReconciliation(string(OutcomeFailed), time.Since(start))
			log.WithError(err).WithField("attempt", attempt).Error("failed to reconcile contact")
			return nil, err
		}

		metrics.RecordRetry()
		log.WithError(err).WithField("attempt", attempt).Warn("reconciliation conflicted with a concurrent request, retrying")

		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "reconciliation cancelled while waiting to retry")
		case <-time.After(time.Duration(attempt) * e.retryBackoff):
		}
	}
}

// reconcile is one attempt: lock, match, resolve, merge, enrich, project
func (e *Engine) reconcile(ctx context.Context, req models.IdentifyRequest) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.Engine.reconcile")
	defer span.End()

	var (
		result   *Result
		releases []ReleaseFunc
	)
	defer func() {
		// locks outside the database are held until the transaction has ended
		releaseCtx := context.WithoutCancel(ctx)
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i](releaseCtx)
		}
	}()

	err := e.store.InTx(ctx, func(ctx context.Context) error {
		release, err := e.locker.Acquire(ctx, IdentifierKeys(req))
		if err != nil {
			return errors.Wrap(err, "failed to acquire identifier locks")
		}
		releases = append(releases, release)

		matches, err := e.findMatches(ctx, req)
		if err != nil {
			return err
		}

		if len(matches) == 0 {
			created, err := e.store.Create(ctx, models.NewContact{
				Email:          req.Email,
				PhoneNumber:    req.PhoneNumber,
				LinkPrecedence: models.LinkPrecedencePrimary,
			})
			if err != nil {
				return errors.Wrap(err, "failed to create primary contact")
			}
			result = &Result{
				Contact: Project(created.ID, []models.Contact{*created}),
				Outcome: OutcomeCreated,
				Created: created,
			}
			return nil
		}

		truePrimary, contenders, err := e.resolveCluster(ctx, matches)
		if err != nil {
			return err
		}

		merged, err := e.mergeClusters(ctx, *truePrimary, contenders)
		if err != nil {
			return err
		}

		cluster, err := e.store.GetCluster(ctx, truePrimary.ID)
		if err != nil {
			return errors.Wrapf(err, "failed to load cluster %d", truePrimary.ID)
		}

		cluster, created, err := e.enrichCluster(ctx, req, truePrimary.ID, cluster)
		if err != nil {
			return err
		}

		result = &Result{
			Contact:  Project(truePrimary.ID, cluster),
			Outcome:  outcomeOf(merged, created),
			Created:  created,
			Demoted:  merged.demoted,
			Relinked: merged.relinked,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (e *Engine) publish(ctx context.Context, result *Result) {
	events := result.Events(e.now().UTC())
	if len(events) == 0 {
		return
	}
	if err := e.events.Publish(ctx, events); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithField("primary_contact_id", result.Contact.PrimaryContactID).Warn("failed to publish contact events")
	}
}

func outcomeOf(merged *mergeResult, created *models.Contact) Outcome {
	switch {
	case len(merged.demoted) > 0:
		return OutcomeMerged
	case created != nil:
		return OutcomeLinked
	default:
		return OutcomeMatched
	}
}
