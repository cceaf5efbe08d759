// Package ledger applies administrative corrections to entries. Every
// mutation is preceded by an append-only EntryCorrection in the same
// transaction, and the work days it touched are reconciled after commit.
package ledger

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/geoclock/timekeeper/internal/audit"
	"github.com/geoclock/timekeeper/internal/datastore/entities"
	"github.com/geoclock/timekeeper/internal/datastore/repository"
	"github.com/geoclock/timekeeper/internal/errors"
	"github.com/geoclock/timekeeper/internal/logger"
	"github.com/geoclock/timekeeper/internal/model"
	"github.com/geoclock/timekeeper/internal/observability/metrics"
	"github.com/geoclock/timekeeper/internal/workday"
)

// Reconciler re-derives work days. *workday.Aggregator implements it.
type Reconciler interface {
	ReconcileKeys(ctx context.Context, keys workday.KeySet) workday.BatchReport
}

// Options configures a Ledger.
type Options struct {
	Logger  logger.Logger
	Metrics *metrics.LedgerMetrics
	Audit   audit.Sink
}

// Result describes what an operation did. It is returned alongside errors
// so a caller can retry only the remainder.
type Result struct {
	OperationID string
	Kind        model.CorrectionKind
	// Applied lists entries mutated by this call.
	Applied []string
	// AlreadyApplied lists entries an earlier attempt of the same
	// operation already handled.
	AlreadyApplied []string
	// Untouched lists entries the call did not reach because of an error.
	Untouched       []string
	Reconciled      []workday.Outcome
	ReconcileFailed []workday.Failure
	// Entry is the resulting entry of a create or edit.
	Entry *entities.Entry
}

// Partial reports whether the mutation committed but some work days could
// not be reconciled.
func (r *Result) Partial() bool {
	return r != nil && len(r.ReconcileFailed) > 0
}

// Ledger is the only writer of corrected entries.
type Ledger struct {
	repos      *repository.Repositories
	reconciler Reconciler
	log        logger.Logger
	metrics    *metrics.LedgerMetrics
	audit      audit.Sink
}

// New creates a Ledger.
func New(repos *repository.Repositories, reconciler Reconciler, opts Options) *Ledger {
	if opts.Logger == nil {
		opts.Logger = logger.Global().Module("ledger")
	}
	if opts.Audit == nil {
		opts.Audit = audit.Discard
	}
	return &Ledger{
		repos:      repos,
		reconciler: reconciler,
		log:        opts.Logger,
		metrics:    opts.Metrics,
		audit:      opts.Audit,
	}
}

// Apply validates req and dispatches it to the matching operation.
func (l *Ledger) Apply(ctx context.Context, oc OrgContext, req Request) (*Result, error) {
	switch r := req.(type) {
	case *CreateRequest:
		return l.Create(ctx, oc, *r)
	case *EditRequest:
		return l.Edit(ctx, oc, *r)
	case *ShiftRequest:
		return l.BulkShift(ctx, oc, *r)
	case *DeleteRequest:
		return l.Delete(ctx, oc, *r)
	case nil:
		return nil, errors.ValidationError("kind", "is required")
	}
	return nil, errors.Newf("unsupported correction request %T", req).
		Component("ledger").
		Category(errors.CategoryValidation).
		Context("field", "kind").
		Build()
}

// begin authorizes and validates a request and fixes its operation id.
func (l *Ledger) begin(oc OrgContext, req Request) (*Result, error) {
	if err := oc.requireAdmin(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	b := req.base()
	b.OperationID = strings.TrimSpace(b.OperationID)
	if b.OperationID == "" {
		b.OperationID = uuid.NewString()
	}
	return &Result{OperationID: b.OperationID, Kind: req.Kind()}, nil
}

// mutation describes how one kind of correction changes an entry. correct
// fills the before and after fields of the correction; apply persists the
// change inside the same transaction.
type mutation struct {
	kind    model.CorrectionKind
	reason  string
	correct func(e *entities.Entry, c *entities.EntryCorrection)
	apply   func(ctx context.Context, tx *repository.Repositories, e *entities.Entry, c *entities.EntryCorrection) error
}

// run applies m to every id in order. Corrections already written by an
// earlier attempt of opID are skipped but still contribute their keys.
// Every id is checked to exist before anything is mutated.
func (l *Ledger) run(ctx context.Context, oc OrgContext, opID string, ids []string, m mutation, res *Result) (workday.KeySet, error) {
	var keys workday.KeySet

	prior, err := l.priorCorrections(ctx, oc, opID, m.kind)
	if err != nil {
		res.Untouched = append(res.Untouched, ids...)
		return keys, err
	}

	pending := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := prior[id]; !ok {
			pending = append(pending, id)
		}
	}
	if len(pending) > 0 {
		found, err := l.repos.Entries.GetByIDs(ctx, oc.OrgID, pending)
		if err != nil {
			res.Untouched = append(res.Untouched, ids...)
			return keys, l.storageError(err, opID, "load entries")
		}
		for _, id := range pending {
			if _, ok := found[id]; !ok {
				res.Untouched = append(res.Untouched, ids...)
				return keys, errors.NotFoundError("entry", id)
			}
		}
	}

	for i, id := range ids {
		if c, ok := prior[id]; ok {
			res.AlreadyApplied = append(res.AlreadyApplied, id)
			keys.Merge(oc.keys(CorrectionStates(c)))
			continue
		}

		c, entry, replayed, err := l.applyOne(ctx, oc, opID, id, m)
		if err != nil {
			for _, rest := range ids[i:] {
				if c, ok := prior[rest]; ok {
					res.AlreadyApplied = append(res.AlreadyApplied, rest)
					keys.Merge(oc.keys(CorrectionStates(c)))
					continue
				}
				res.Untouched = append(res.Untouched, rest)
			}
			return keys, err
		}

		keys.Merge(oc.keys(CorrectionStates(c)))
		if replayed {
			res.AlreadyApplied = append(res.AlreadyApplied, id)
			continue
		}
		res.Applied = append(res.Applied, id)
		res.Entry = entry
		l.metrics.RecordCorrection(string(m.kind))
	}
	return keys, nil
}

// applyOne writes the correction and then the mutation of one entry in a
// single transaction. replayed is true when a concurrent attempt of the
// same operation got there first.
func (l *Ledger) applyOne(ctx context.Context, oc OrgContext, opID, id string, m mutation) (*entities.EntryCorrection, *entities.Entry, bool, error) {
	var (
		correction *entities.EntryCorrection
		entry      *entities.Entry
	)

	err := l.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		e, err := tx.Entries.GetForUpdate(ctx, oc.OrgID, id)
		if err != nil {
			return err
		}

		c := &entities.EntryCorrection{
			OperationID: opID,
			EntryID:     e.ID,
			OrgID:       oc.OrgID,
			UserID:      e.UserID,
			Kind:        m.kind,
			CorrectedBy: oc.ActorID,
			Reason:      m.reason,
			Status:      model.CorrectionApproved,
		}
		m.correct(e, c)

		if err := tx.Corrections.Create(ctx, c); err != nil {
			return err
		}
		if err := m.apply(ctx, tx, e, c); err != nil {
			return err
		}

		correction, entry = c, e
		return nil
	})

	switch {
	case err == nil:
		return correction, entry, false, nil
	case errors.Is(err, repository.ErrDuplicateKey):
		existing, gerr := l.repos.Corrections.GetByOperationAndEntry(ctx, opID, id)
		if gerr != nil {
			return nil, nil, false, l.storageError(gerr, opID, "load correction")
		}
		return existing, nil, true, nil
	case errors.Is(err, repository.ErrEntryNotFound):
		return nil, nil, false, errors.NotFoundError("entry", id)
	}
	return nil, nil, false, l.storageError(err, opID, string(m.kind))
}

// priorCorrections returns the corrections opID already wrote, keyed by
// entry id. Reusing an operation id for another kind or organization is a
// conflict.
func (l *Ledger) priorCorrections(ctx context.Context, oc OrgContext, opID string, kind model.CorrectionKind) (map[string]*entities.EntryCorrection, error) {
	list, err := l.repos.Corrections.ListByOperation(ctx, opID)
	if err != nil {
		return nil, l.storageError(err, opID, "load corrections")
	}

	prior := make(map[string]*entities.EntryCorrection, len(list))
	for _, c := range list {
		if c.OrgID != oc.OrgID || c.Kind != kind {
			return nil, errors.Newf("operation %s was already used for a different request", opID).
				Component("ledger").
				Category(errors.CategoryConflict).
				Context("operation_id", opID).
				Build()
		}
		prior[c.EntryID] = c
	}
	return prior, nil
}

// finish reconciles keys and reports the operation. opErr is returned
// unchanged; reconcile failures only land in the result.
func (l *Ledger) finish(ctx context.Context, oc OrgContext, res *Result, keys workday.KeySet, details map[string]any, opErr error) (*Result, error) {
	if keys.Len() > 0 {
		report := l.reconciler.ReconcileKeys(ctx, keys)
		res.Reconciled = report.Succeeded
		res.ReconcileFailed = report.Failed
		for _, f := range report.Failed {
			l.log.Warn("reconcile after correction failed",
				logger.String("operation_id", res.OperationID),
				logger.String("key", f.Key.String()),
				logger.Error(f.Err))
		}
	}

	status := metrics.StatusSuccess
	switch {
	case opErr != nil:
		status = metrics.StatusError
	case res.Partial():
		status = metrics.StatusPartial
	}
	l.metrics.RecordOperation(string(res.Kind), status)
	l.metrics.RecordAlreadyApplied(string(res.Kind), len(res.AlreadyApplied))

	fields := []logger.Field{
		logger.String("operation_id", res.OperationID),
		logger.String("kind", string(res.Kind)),
		logger.String("actor_id", oc.ActorID),
		logger.Int("applied", len(res.Applied)),
		logger.Int("already_applied", len(res.AlreadyApplied)),
		logger.Int("untouched", len(res.Untouched)),
		logger.Int("reconciled", len(res.Reconciled)),
		logger.Int("reconcile_failed", len(res.ReconcileFailed)),
	}
	if opErr != nil {
		l.log.Error("correction failed", append(fields, logger.Error(opErr))...)
	} else {
		l.log.Info("correction applied", fields...)
	}

	if len(res.Applied) > 0 {
		if details == nil {
			details = make(map[string]any)
		}
		details["operationId"] = res.OperationID
		details["entryIds"] = res.Applied
		event := audit.Event{
			OrgID:      oc.OrgID,
			ActorID:    oc.ActorID,
			Action:     auditAction(res.Kind),
			EntityType: "entry",
			Details:    details,
		}
		if len(res.Applied) == 1 {
			event.EntityID = res.Applied[0]
		}
		l.audit.Record(ctx, event)
	}

	return res, opErr
}

func auditAction(kind model.CorrectionKind) string {
	return "entry." + strings.ToLower(string(kind))
}

func (l *Ledger) storageError(err error, opID, operation string) error {
	return errors.New(err).
		Component("ledger").
		Category(errors.CategoryDatabase).
		Context("operation_id", opID).
		Context("operation", operation).
		Build()
}

func millis(v int64) *int64 { return &v }

func ptr[T any](v T) *T { return &v }
