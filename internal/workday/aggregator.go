// Package workday derives WorkDay rows from raw entries.
//
// A reconcile always recomputes the row from every entry in the key's local
// day, so running it twice, or after any sequence of mutations, yields the
// same row. Reconciles of one row are serialized in-process by a keyed
// mutex. Across processes the transaction opens with a locking read of the
// row key, so the entry set is read after any competing reconcile of the
// same key has committed; a lost insert race or a MySQL deadlock on the key
// reruns the transaction.
package workday

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/geoclock/timekeeper/internal/datastore/entities"
	"github.com/geoclock/timekeeper/internal/datastore/repository"
	"github.com/geoclock/timekeeper/internal/errors"
	"github.com/geoclock/timekeeper/internal/localday"
	"github.com/geoclock/timekeeper/internal/logger"
	"github.com/geoclock/timekeeper/internal/model"
	"github.com/geoclock/timekeeper/internal/observability/metrics"
	"github.com/geoclock/timekeeper/internal/pairing"
)

// Action describes what a reconcile did to the row.
type Action string

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionUnchanged Action = "unchanged"
	ActionDeleted   Action = "deleted"
	// ActionEmpty means there were no entries and no row.
	ActionEmpty Action = "empty"
)

const (
	defaultWorkers = 4
	// maxConflictAttempts bounds reruns after an insert race or lock conflict.
	maxConflictAttempts = 3
)

// Options configures an Aggregator.
type Options struct {
	// DailyMinimumMinutes is the policy minimum when a key carries none.
	DailyMinimumMinutes int
	// Workers bounds ReconcileKeys parallelism.
	Workers int
	Logger  logger.Logger
	Metrics *metrics.ReconcileMetrics
}

// Outcome is the result of reconciling one key.
type Outcome struct {
	Key       Key
	Action    Action
	WorkDay   *entities.WorkDay
	Anomalies []pairing.Anomaly
}

// Failure pairs a key with the error that stopped its reconcile.
type Failure struct {
	Key Key
	Err error
}

// BatchReport lists the results of ReconcileKeys in key order.
type BatchReport struct {
	Succeeded []Outcome
	Failed    []Failure
}

// OK reports whether every key reconciled.
func (r BatchReport) OK() bool {
	return len(r.Failed) == 0
}

// Err joins the failures, or returns nil.
func (r BatchReport) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, f.Err)
	}
	return errors.Join(errs...)
}

// Aggregator reconciles WorkDay rows.
type Aggregator struct {
	repos   *repository.Repositories
	locker  *Locker
	minimum int
	workers int
	log     logger.Logger
	metrics *metrics.ReconcileMetrics
}

// New creates an Aggregator over repos.
func New(repos *repository.Repositories, opts Options) *Aggregator {
	if opts.DailyMinimumMinutes <= 0 {
		opts.DailyMinimumMinutes = model.DefaultDailyMinimumMinutes
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.Logger == nil {
		opts.Logger = logger.Global().Module("workday")
	}
	return &Aggregator{
		repos:   repos,
		locker:  NewLocker(),
		minimum: opts.DailyMinimumMinutes,
		workers: opts.Workers,
		log:     opts.Logger,
		metrics: opts.Metrics,
	}
}

// Reconcile recomputes the row of key from its entries.
func (a *Aggregator) Reconcile(ctx context.Context, key Key) (Outcome, error) {
	if err := key.Validate(); err != nil {
		return Outcome{Key: key}, err
	}

	start := time.Now()
	unlock := a.locker.Lock(key.Row())
	defer unlock()

	var (
		outcome Outcome
		err     error
	)
	for attempt := 1; attempt <= maxConflictAttempts; attempt++ {
		outcome, err = a.reconcileOnce(ctx, key)
		if !repository.IsRetryable(err) {
			break
		}
		// Another process inserted or locked the row first. The rerun
		// waits for it and then updates the row it committed.
		a.metrics.RecordConflictRetry()
		a.log.Debug("work day reconcile conflicted, retrying",
			logger.String("key", key.String()),
			logger.Int("attempt", attempt))
	}

	if err != nil {
		wrapped := errors.New(err).
			Component("workday").
			Category(errors.CategoryReconcile).
			Context("user_id", key.UserID).
			Context("location_id", key.LocationID).
			Context("date", key.Date.String()).
			Build()
		a.metrics.RecordFailure(string(errors.CategoryOf(wrapped)))
		a.log.Error("reconcile failed",
			logger.String("key", key.String()),
			logger.Error(err))
		return Outcome{Key: key}, wrapped
	}

	a.metrics.RecordReconcile(string(outcome.Action), time.Since(start))
	a.reportAnomalies(key, outcome.Anomalies)
	a.log.Debug("reconciled work day",
		logger.String("key", key.String()),
		logger.String("action", string(outcome.Action)),
		logger.Duration("elapsed", time.Since(start)))

	return outcome, nil
}

func (a *Aggregator) reconcileOnce(ctx context.Context, key Key) (Outcome, error) {
	outcome := Outcome{Key: key}
	startMs, endMs := localday.RangeMillis(key.Date, key.zone())
	date := key.Date.String()

	err := a.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		// The lock comes first so the entry read sees every entry
		// committed before a competing reconcile released the key.
		existing, err := tx.WorkDays.LockByKey(ctx, key.UserID, key.LocationID, date)
		if err != nil && !errors.Is(err, repository.ErrWorkDayNotFound) {
			return err
		}

		found, err := tx.Entries.FindInRange(ctx, key.UserID, key.LocationID, startMs, endMs)
		if err != nil {
			return err
		}

		if len(found) == 0 {
			if existing == nil {
				outcome.Action = ActionEmpty
				return nil
			}
			if err := tx.Entries.UnlinkWorkDay(ctx, existing.ID, nil); err != nil {
				return err
			}
			if err := tx.WorkDays.Delete(ctx, existing.ID); err != nil {
				return err
			}
			outcome.Action = ActionDeleted
			return nil
		}

		result := pairing.Pair(toPunches(found))
		totals := result.Totals(a.minimumFor(key))
		outcome.Anomalies = result.Anomalies

		row := &entities.WorkDay{
			OrgID:        orgOf(key, found),
			UserID:       key.UserID,
			LocationID:   key.LocationID,
			Date:         date,
			TotalMinutes: totals.TotalMinutes,
			BreakMinutes: totals.BreakMinutes,
			MeetsPolicy:  totals.MeetsPolicy,
			FirstClockIn: result.FirstClockIn,
			LastClockOut: result.LastClockOut,
		}

		switch {
		case existing == nil:
			if err := tx.WorkDays.Create(ctx, row); err != nil {
				return err
			}
			outcome.Action = ActionCreated
		case existing.SameFigures(row):
			row.ID = existing.ID
			outcome.Action = ActionUnchanged
		default:
			row.ID = existing.ID
			if err := tx.WorkDays.Update(ctx, row); err != nil {
				return err
			}
			outcome.Action = ActionUpdated
		}
		outcome.WorkDay = row

		ids := make([]string, 0, len(found))
		for _, e := range found {
			ids = append(ids, e.ID)
		}
		if err := tx.Entries.UnlinkWorkDay(ctx, row.ID, ids); err != nil {
			return err
		}
		return tx.Entries.LinkWorkDay(ctx, ids, row.ID)
	})
	if err != nil {
		return Outcome{Key: key}, err
	}
	return outcome, nil
}

// ReconcileKeys reconciles distinct keys in parallel. A failing key does
// not stop the others.
func (a *Aggregator) ReconcileKeys(ctx context.Context, keys KeySet) BatchReport {
	list := keys.Keys()
	outcomes := make([]Outcome, len(list))
	failures := make([]error, len(list))

	var g errgroup.Group
	g.SetLimit(a.workers)
	for i, key := range list {
		g.Go(func() error {
			outcomes[i], failures[i] = a.Reconcile(ctx, key)
			return nil
		})
	}
	_ = g.Wait()

	var report BatchReport
	for i, key := range list {
		if failures[i] != nil {
			report.Failed = append(report.Failed, Failure{Key: key, Err: failures[i]})
			continue
		}
		report.Succeeded = append(report.Succeeded, outcomes[i])
	}
	return report
}

// ReconcileRange reconciles every local day in [from, to] for one user and
// location.
func (a *Aggregator) ReconcileRange(ctx context.Context, base Key, from, to localday.Date) BatchReport {
	var set KeySet
	for _, d := range localday.Dates(from, to) {
		k := base
		k.Date = d
		set.Add(k)
	}
	return a.ReconcileKeys(ctx, set)
}

func (a *Aggregator) minimumFor(key Key) int {
	if key.MinimumMinutes > 0 {
		return key.MinimumMinutes
	}
	return a.minimum
}

func (a *Aggregator) reportAnomalies(key Key, anomalies []pairing.Anomaly) {
	if len(anomalies) == 0 {
		return
	}
	for _, an := range anomalies {
		a.log.Warn("unpaired clock event",
			logger.String("key", key.String()),
			logger.String("kind", string(an.Kind)),
			logger.String("entry_id", an.PunchID),
			logger.Time("at", time.UnixMilli(an.At).UTC()))
	}
	for kind, n := range (pairing.Result{Anomalies: anomalies}).CountByKind() {
		a.metrics.RecordAnomaly(string(kind), n)
	}
}

func toPunches(found []*entities.Entry) []pairing.Punch {
	punches := make([]pairing.Punch, 0, len(found))
	for _, e := range found {
		punches = append(punches, pairing.Punch{ID: e.ID, Type: e.Type, At: e.TimestampServer})
	}
	return punches
}

// orgOf prefers the key's organization and falls back to the entries'.
func orgOf(key Key, found []*entities.Entry) string {
	if key.OrgID != "" {
		return key.OrgID
	}
	return found[0].OrgID
}
