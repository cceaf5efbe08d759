package ledger

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoclock/timekeeper/internal/audit"
	"github.com/geoclock/timekeeper/internal/datastore/entities"
	"github.com/geoclock/timekeeper/internal/datastore/repository"
	"github.com/geoclock/timekeeper/internal/errors"
	"github.com/geoclock/timekeeper/internal/logger"
	"github.com/geoclock/timekeeper/internal/model"
	"github.com/geoclock/timekeeper/internal/testutil"
	"github.com/geoclock/timekeeper/internal/workday"
)

type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *recordingSink) Record(_ context.Context, e audit.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Action)
	}
	return out
}

// failingReconciler fails every key, as a database outage after commit would.
type failingReconciler struct{}

func (failingReconciler) ReconcileKeys(_ context.Context, keys workday.KeySet) workday.BatchReport {
	var report workday.BatchReport
	for _, k := range keys.Keys() {
		report.Failed = append(report.Failed, workday.Failure{Key: k, Err: errors.NewStd("store unavailable")})
	}
	return report
}

type fixture struct {
	repos  *repository.Repositories
	agg    *workday.Aggregator
	ledger *Ledger
	sink   *recordingSink
	ny     *time.Location
}

func newFixture(t *testing.T, reconciler Reconciler) *fixture {
	t.Helper()
	repos, _ := testutil.NewStore(t)
	testutil.Seed(t, repos, "America/New_York")

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	quiet := logger.NewSlogLogger(nil, logger.LogLevelError, time.UTC)
	agg := workday.New(repos, workday.Options{Logger: quiet})
	if reconciler == nil {
		reconciler = agg
	}
	sink := &recordingSink{}

	return &fixture{
		repos:  repos,
		agg:    agg,
		ledger: New(repos, reconciler, Options{Logger: quiet, Audit: sink}),
		sink:   sink,
		ny:     ny,
	}
}

func (f *fixture) admin() OrgContext {
	return OrgContext{OrgID: testutil.OrgID, ActorID: testutil.AdminID, Role: model.RoleOwner, Timezone: f.ny}
}

func (f *fixture) employee() OrgContext {
	return OrgContext{OrgID: testutil.OrgID, ActorID: testutil.EmployeeID, Role: model.RoleEmployee, Timezone: f.ny}
}

func (f *fixture) outsider() OrgContext {
	return OrgContext{OrgID: testutil.OtherOrgID, ActorID: testutil.OutsiderID, Role: model.RoleAdmin, Timezone: time.UTC}
}

func (f *fixture) workDay(t *testing.T, location, date string) *entities.WorkDay {
	t.Helper()
	wd, err := f.repos.WorkDays.GetByKey(context.Background(), testutil.EmployeeID, location, date)
	if errors.Is(err, repository.ErrWorkDayNotFound) {
		return nil
	}
	require.NoError(t, err)
	return wd
}

func (f *fixture) entry(t *testing.T, id string) *entities.Entry {
	t.Helper()
	e, err := f.repos.Entries.GetByID(context.Background(), testutil.OrgID, id)
	if errors.Is(err, repository.ErrEntryNotFound) {
		return nil
	}
	require.NoError(t, err)
	return e
}

func (f *fixture) insert(t *testing.T, typ model.EntryType, at string) *entities.Entry {
	t.Helper()
	e := testutil.InsertEntry(t, f.repos, entities.Entry{Type: typ, TimestampServer: testutil.Millis(t, at)})
	report := f.agg.ReconcileKeys(context.Background(), AffectedKeys(nil, StateOf(e), f.ny))
	require.True(t, report.OK())
	return e
}

func createReq(typ model.EntryType, at time.Time) CreateRequest {
	return CreateRequest{
		Base:       Base{Reason: "forgot to clock"},
		UserID:     testutil.EmployeeID,
		LocationID: testutil.LocationID,
		Type:       typ,
		Timestamp:  at,
	}
}

func TestCreate_WritesCorrectionAndReconciles(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	in, err := time.Parse(time.RFC3339, "2024-06-03T09:00:00-04:00")
	require.NoError(t, err)

	res, err := f.ledger.Create(ctx, f.admin(), createReq(model.EntryClockIn, in))
	require.NoError(t, err)
	require.Len(t, res.Applied, 1)
	require.NotNil(t, res.Entry)

	res, err = f.ledger.Create(ctx, f.admin(), createReq(model.EntryClockOut, in.Add(8*time.Hour)))
	require.NoError(t, err)
	require.Len(t, res.Reconciled, 1)
	assert.Equal(t, workday.ActionUpdated, res.Reconciled[0].Action)

	wd := f.workDay(t, testutil.LocationID, "2024-06-03")
	require.NotNil(t, wd)
	assert.Equal(t, 480, wd.TotalMinutes)
	assert.True(t, wd.MeetsPolicy)

	history, err := f.ledger.Corrections(ctx, f.admin(), res.Entry.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	c := history[0]
	assert.Equal(t, model.CorrectionCreate, c.Kind)
	assert.Equal(t, testutil.AdminID, c.CorrectedBy)
	assert.Nil(t, c.OldTimestamp)
	require.NotNil(t, c.NewTimestamp)
	assert.Equal(t, res.Entry.TimestampServer, *c.NewTimestamp)
	assert.Equal(t, model.CorrectionApproved, c.Status)

	assert.Equal(t, []string{"entry.create", "entry.create"}, f.sink.actions())
}

func TestCreate_RetryReturnsSameEntry(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	req := createReq(model.EntryClockIn, time.Date(2024, 6, 3, 13, 0, 0, 0, time.UTC))
	req.OperationID = "op-create-1"

	first, err := f.ledger.Create(ctx, f.admin(), req)
	require.NoError(t, err)
	second, err := f.ledger.Create(ctx, f.admin(), req)
	require.NoError(t, err)

	assert.Empty(t, second.Applied)
	assert.Equal(t, first.Applied, second.AlreadyApplied)
	require.NotNil(t, second.Entry)
	assert.Equal(t, first.Entry.ID, second.Entry.ID)

	entries, total, err := f.repos.Entries.List(ctx, repository.EntryFilter{OrgID: testutil.OrgID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, entries, 1)
	assert.Len(t, f.sink.actions(), 1)
}

func TestCreate_OutsideOrganizationIsNotFound(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	at := time.Date(2024, 6, 3, 13, 0, 0, 0, time.UTC)

	req := createReq(model.EntryClockIn, at)
	req.UserID = testutil.OutsiderID
	_, err := f.ledger.Create(ctx, f.admin(), req)
	assert.True(t, errors.IsNotFound(err), "foreign user: %v", err)

	req = createReq(model.EntryClockIn, at)
	req.LocationID = testutil.ForeignLocation
	_, err = f.ledger.Create(ctx, f.admin(), req)
	assert.True(t, errors.IsNotFound(err), "foreign location: %v", err)

	_, total, err := f.repos.Entries.List(ctx, repository.EntryFilter{OrgID: testutil.OrgID})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, f.sink.actions())
}

func TestAuthorization(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	e := f.insert(t, model.EntryClockIn, "2024-06-03T09:00:00-04:00")

	t.Run("employee is forbidden", func(t *testing.T) {
		_, err := f.ledger.BulkShift(ctx, f.employee(), ShiftRequest{
			Base: Base{Reason: "r"}, EntryIDs: []string{e.ID}, ShiftMinutes: 5,
		})
		assert.True(t, errors.IsForbidden(err))
	})

	t.Run("foreign admin sees not found", func(t *testing.T) {
		res, err := f.ledger.Delete(ctx, f.outsider(), DeleteRequest{
			Base: Base{Reason: "r"}, EntryIDs: []string{e.ID},
		})
		assert.True(t, errors.IsNotFound(err))
		require.NotNil(t, res)
		assert.Equal(t, []string{e.ID}, res.Untouched)
		assert.NotNil(t, f.entry(t, e.ID))
	})

	t.Run("missing context is forbidden", func(t *testing.T) {
		_, err := f.ledger.Delete(ctx, OrgContext{Role: model.RoleOwner}, DeleteRequest{
			Base: Base{Reason: "r"}, EntryIDs: []string{e.ID},
		})
		assert.True(t, errors.IsForbidden(err))
	})
}

func TestEdit_RecordsOldValues(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	e := f.insert(t, model.EntryClockIn, "2024-06-03T09:00:00-04:00")
	f.insert(t, model.EntryClockOut, "2024-06-03T17:00:00-04:00")

	at, err := time.Parse(time.RFC3339, "2024-06-03T08:00:00-04:00")
	require.NoError(t, err)
	typ := model.EntryClockIn
	notes := " badge reader down "

	res, err := f.ledger.Edit(ctx, f.admin(), EditRequest{
		Base:      Base{Reason: "badge reader down"},
		EntryID:   e.ID,
		Timestamp: &at,
		Type:      &typ,
		Notes:     &notes,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Entry)
	assert.Equal(t, at.UnixMilli(), res.Entry.TimestampServer)
	require.NotNil(t, res.Entry.Notes)
	assert.Equal(t, "badge reader down", *res.Entry.Notes)

	history, err := f.ledger.Corrections(ctx, f.admin(), e.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	c := history[0]
	assert.Equal(t, model.CorrectionEdit, c.Kind)
	assert.Equal(t, e.TimestampServer, *c.OldTimestamp)
	assert.Equal(t, at.UnixMilli(), *c.NewTimestamp)
	assert.Equal(t, model.EntryClockIn, *c.OldType)
	assert.Nil(t, c.NewType, "unchanged type is not recorded as new")
	assert.Nil(t, c.NewLocationID)

	wd := f.workDay(t, testutil.LocationID, "2024-06-03")
	require.NotNil(t, wd)
	assert.Equal(t, 540, wd.TotalMinutes)
}

func TestEdit_MoveLocationReconcilesBoth(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	e := f.insert(t, model.EntryClockIn, "2024-06-03T09:00:00-04:00")
	require.NotNil(t, f.workDay(t, testutil.LocationID, "2024-06-03"))

	loc := testutil.OtherLocationID
	res, err := f.ledger.Edit(ctx, f.admin(), EditRequest{
		Base: Base{Reason: "wrong site"}, EntryID: e.ID, LocationID: &loc,
	})
	require.NoError(t, err)
	assert.Len(t, res.Reconciled, 2)

	assert.Nil(t, f.workDay(t, testutil.LocationID, "2024-06-03"))
	moved := f.workDay(t, testutil.OtherLocationID, "2024-06-03")
	require.NotNil(t, moved)
	require.NotNil(t, moved.FirstClockIn)

	foreign := testutil.ForeignLocation
	_, err = f.ledger.Edit(ctx, f.admin(), EditRequest{
		Base: Base{Reason: "r"}, EntryID: e.ID, LocationID: &foreign,
	})
	assert.True(t, errors.IsNotFound(err))
}

func TestBulkShift_AcrossMidnight(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	in := f.insert(t, model.EntryClockIn, "2024-06-03T23:45:00-04:00")
	f.insert(t, model.EntryClockOut, "2024-06-04T08:00:00-04:00")
	require.NotNil(t, f.workDay(t, testutil.LocationID, "2024-06-03"))

	res, err := f.ledger.BulkShift(ctx, f.admin(), ShiftRequest{
		Base: Base{Reason: "late start"}, EntryIDs: []string{in.ID}, ShiftMinutes: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{in.ID}, res.Applied)
	require.Len(t, res.Reconciled, 2)

	actions := map[string]workday.Action{}
	for _, o := range res.Reconciled {
		actions[o.Key.Date.String()] = o.Action
	}
	assert.Equal(t, workday.ActionDeleted, actions["2024-06-03"])
	assert.Equal(t, workday.ActionUpdated, actions["2024-06-04"])

	assert.Nil(t, f.workDay(t, testutil.LocationID, "2024-06-03"))
	next := f.workDay(t, testutil.LocationID, "2024-06-04")
	require.NotNil(t, next)
	assert.Equal(t, 465, next.TotalMinutes)

	shifted := f.entry(t, in.ID)
	require.NotNil(t, shifted)
	assert.Equal(t, in.TimestampServer+30*60_000, shifted.TimestampServer)
	require.NotNil(t, shifted.WorkDayID)
	assert.Equal(t, next.ID, *shifted.WorkDayID)
}

func TestBulkShift_RetryWritesNoDuplicates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := f.insert(t, model.EntryClockIn, "2024-06-03T09:00:00-04:00")
	b := f.insert(t, model.EntryClockOut, "2024-06-03T17:00:00-04:00")

	req := ShiftRequest{
		Base:         Base{OperationID: "op-shift-1", Reason: "clock drift"},
		EntryIDs:     []string{a.ID, b.ID},
		ShiftMinutes: -15,
	}
	first, err := f.ledger.BulkShift(ctx, f.admin(), req)
	require.NoError(t, err)
	assert.Len(t, first.Applied, 2)

	second, err := f.ledger.BulkShift(ctx, f.admin(), req)
	require.NoError(t, err)
	assert.Empty(t, second.Applied)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, second.AlreadyApplied)
	require.Len(t, second.Reconciled, 1)
	assert.Equal(t, workday.ActionUnchanged, second.Reconciled[0].Action)

	corrections, err := f.repos.Corrections.ListByOperation(ctx, "op-shift-1")
	require.NoError(t, err)
	assert.Len(t, corrections, 2)
	assert.Equal(t, a.TimestampServer-15*60_000, f.entry(t, a.ID).TimestampServer)
}

func TestBulkShift_MissingEntryMutatesNothing(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := f.insert(t, model.EntryClockIn, "2024-06-03T09:00:00-04:00")

	res, err := f.ledger.BulkShift(ctx, f.admin(), ShiftRequest{
		Base:         Base{OperationID: "op-missing", Reason: "r"},
		EntryIDs:     []string{a.ID, "00000000-0000-0000-0000-00000000dead"},
		ShiftMinutes: 10,
	})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Len(t, res.Untouched, 2)
	assert.Empty(t, res.Applied)
	assert.Equal(t, a.TimestampServer, f.entry(t, a.ID).TimestampServer)

	corrections, err := f.repos.Corrections.ListByOperation(ctx, "op-missing")
	require.NoError(t, err)
	assert.Empty(t, corrections)
}

func TestReconcileFailureKeepsCorrectionAndMutation(t *testing.T) {
	f := newFixture(t, failingReconciler{})
	ctx := context.Background()
	a := f.insert(t, model.EntryClockIn, "2024-06-03T09:00:00-04:00")
	f.insert(t, model.EntryClockOut, "2024-06-03T17:00:00-04:00")

	res, err := f.ledger.BulkShift(ctx, f.admin(), ShiftRequest{
		Base: Base{Reason: "r"}, EntryIDs: []string{a.ID}, ShiftMinutes: 60,
	})
	require.NoError(t, err)
	assert.True(t, res.Partial())
	require.Len(t, res.ReconcileFailed, 1)
	assert.Equal(t, []string{a.ID}, res.Applied)

	history, err := f.ledger.Corrections(ctx, f.admin(), a.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, a.TimestampServer+3_600_000, f.entry(t, a.ID).TimestampServer)

	// The stale row is repaired by a later reconcile.
	assert.Equal(t, 480, f.workDay(t, testutil.LocationID, "2024-06-03").TotalMinutes)
	report := f.agg.ReconcileKeys(ctx, AffectedKeys(StateOf(a), nil, f.ny))
	require.True(t, report.OK())
	assert.Equal(t, 420, f.workDay(t, testutil.LocationID, "2024-06-03").TotalMinutes)
}

func TestDelete_LeavesTombstone(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := f.insert(t, model.EntryClockIn, "2024-06-03T09:00:00-04:00")

	req := DeleteRequest{Base: Base{OperationID: "op-del", Reason: "  duplicate punch "}, EntryIDs: []string{a.ID}}
	res, err := f.ledger.Delete(ctx, f.admin(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, res.Applied)
	require.Len(t, res.Reconciled, 1)
	assert.Equal(t, workday.ActionDeleted, res.Reconciled[0].Action)
	assert.Nil(t, f.entry(t, a.ID))
	assert.Nil(t, f.workDay(t, testutil.LocationID, "2024-06-03"))

	history, err := f.ledger.Corrections(ctx, f.admin(), a.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	c := history[0]
	assert.Equal(t, model.CorrectionDelete, c.Kind)
	assert.Equal(t, "[DELETED] duplicate punch", c.Reason)
	assert.True(t, strings.HasPrefix(c.Reason, model.DeletedReasonPrefix))
	assert.Equal(t, model.EntryClockIn, *c.OldType)
	assert.Equal(t, a.TimestampServer, *c.OldTimestamp)
	assert.Equal(t, testutil.LocationID, *c.OldLocationID)
	assert.Nil(t, c.NewTimestamp)

	retry, err := f.ledger.Delete(ctx, f.admin(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, retry.AlreadyApplied)
	require.Len(t, retry.Reconciled, 1)
	assert.Equal(t, workday.ActionEmpty, retry.Reconciled[0].Action)
}

func TestCorrections_Access(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	own := f.insert(t, model.EntryClockIn, "2024-06-03T09:00:00-04:00")
	other := testutil.InsertEntry(t, f.repos, entities.Entry{
		UserID: testutil.AdminID, Type: model.EntryClockIn, TimestampServer: own.TimestampServer,
	})

	list, err := f.ledger.Corrections(ctx, f.employee(), own.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.ledger.Corrections(ctx, f.employee(), other.ID)
	assert.True(t, errors.IsForbidden(err))

	_, err = f.ledger.Corrections(ctx, f.outsider(), own.ID)
	assert.True(t, errors.IsNotFound(err))

	_, err = f.ledger.Corrections(ctx, f.admin(), "00000000-0000-0000-0000-00000000dead")
	assert.True(t, errors.IsNotFound(err))
}

func TestOperationIDReusedForOtherKind(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := f.insert(t, model.EntryClockIn, "2024-06-03T09:00:00-04:00")

	_, err := f.ledger.BulkShift(ctx, f.admin(), ShiftRequest{
		Base: Base{OperationID: "op-x", Reason: "r"}, EntryIDs: []string{a.ID}, ShiftMinutes: 5,
	})
	require.NoError(t, err)

	_, err = f.ledger.Delete(ctx, f.admin(), DeleteRequest{
		Base: Base{OperationID: "op-x", Reason: "r"}, EntryIDs: []string{a.ID},
	})
	assert.True(t, errors.IsConflict(err))
	assert.NotNil(t, f.entry(t, a.ID))
}

func TestApply_DecodedRequest(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := f.insert(t, model.EntryClockIn, "2024-06-03T09:00:00-04:00")

	req, err := DecodeRequest([]byte(`{"kind":"shift","reason":"drift","entryIds":["` + a.ID + `"],"shiftMinutes":-5}`))
	require.NoError(t, err)

	res, err := f.ledger.Apply(ctx, f.admin(), req)
	require.NoError(t, err)
	assert.Equal(t, model.CorrectionShift, res.Kind)
	assert.NotEmpty(t, res.OperationID)
	assert.Equal(t, []string{"entry.shift"}, f.sink.actions())

	_, err = f.ledger.Apply(ctx, f.admin(), nil)
	assert.True(t, errors.IsValidation(err))
}
