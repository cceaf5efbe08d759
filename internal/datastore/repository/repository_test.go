package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoclock/timekeeper/internal/datastore/entities"
	"github.com/geoclock/timekeeper/internal/datastore/repository"
	"github.com/geoclock/timekeeper/internal/errors"
	"github.com/geoclock/timekeeper/internal/model"
	"github.com/geoclock/timekeeper/internal/testutil"
)

func setupRepos(t *testing.T) *repository.Repositories {
	t.Helper()
	repos, _ := testutil.NewStore(t)
	testutil.Seed(t, repos, "America/New_York")
	return repos
}

func TestEntries_FindInRangeIsHalfOpenAndOrdered(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()

	start := testutil.Millis(t, "2024-03-10T05:00:00Z")
	end := testutil.Millis(t, "2024-03-11T04:00:00Z")

	testutil.InsertEntry(t, repos, entities.Entry{ID: "b", Type: model.EntryClockOut, TimestampServer: start + 1000})
	testutil.InsertEntry(t, repos, entities.Entry{ID: "a", Type: model.EntryClockIn, TimestampServer: start + 1000})
	testutil.InsertEntry(t, repos, entities.Entry{ID: "first", Type: model.EntryClockIn, TimestampServer: start})
	testutil.InsertEntry(t, repos, entities.Entry{ID: "excluded", Type: model.EntryClockIn, TimestampServer: end})
	testutil.InsertEntry(t, repos, entities.Entry{ID: "before", Type: model.EntryClockIn, TimestampServer: start - 1})
	testutil.InsertEntry(t, repos, entities.Entry{ID: "elsewhere", LocationID: testutil.OtherLocationID, Type: model.EntryClockIn, TimestampServer: start + 5})

	got, err := repos.Entries.FindInRange(ctx, testutil.EmployeeID, testutil.LocationID, start, end)
	require.NoError(t, err)

	ids := make([]string, 0, len(got))
	for _, e := range got {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"first", "a", "b"}, ids)
}

func TestEntries_GetByIDIsOrgScoped(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()

	e := testutil.InsertEntry(t, repos, entities.Entry{Type: model.EntryClockIn, TimestampServer: 1})
	require.NotEmpty(t, e.ID)

	got, err := repos.Entries.GetByID(ctx, testutil.OrgID, e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EntryClockIn, got.Type)

	_, err = repos.Entries.GetByID(ctx, testutil.OtherOrgID, e.ID)
	assert.ErrorIs(t, err, repository.ErrEntryNotFound)
	assert.True(t, repository.IsNotFound(err))
}

func TestEntries_GetByIDsChunks(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()

	ids := make([]string, 0, 1100)
	for i := range 1100 {
		id := fmt.Sprintf("entry-%04d", i)
		ids = append(ids, id)
		if i%2 == 0 {
			testutil.InsertEntry(t, repos, entities.Entry{ID: id, Type: model.EntryClockIn, TimestampServer: int64(i)})
		}
	}

	got, err := repos.Entries.GetByIDs(ctx, testutil.OrgID, ids)
	require.NoError(t, err)
	assert.Len(t, got, 550)
	assert.Contains(t, got, "entry-1098")
	assert.NotContains(t, got, "entry-1099")
}

func TestEntries_UpdateAndDelete(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()

	e := testutil.InsertEntry(t, repos, entities.Entry{Type: model.EntryClockIn, TimestampServer: 1000})

	e.TimestampServer = 2000
	e.Type = model.EntryClockOut
	e.LocationID = testutil.OtherLocationID
	require.NoError(t, repos.Entries.Update(ctx, e))

	got, err := repos.Entries.GetByID(ctx, testutil.OrgID, e.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), got.TimestampServer)
	assert.Equal(t, model.EntryClockOut, got.Type)
	assert.Equal(t, testutil.OtherLocationID, got.LocationID)

	// Unchanged values still match the row.
	require.NoError(t, repos.Entries.Update(ctx, got))

	missing := &entities.Entry{ID: "missing", OrgID: testutil.OrgID}
	assert.ErrorIs(t, repos.Entries.Update(ctx, missing), repository.ErrEntryNotFound)

	require.NoError(t, repos.Entries.Delete(ctx, testutil.OrgID, e.ID))
	assert.ErrorIs(t, repos.Entries.Delete(ctx, testutil.OrgID, e.ID), repository.ErrEntryNotFound)
}

func TestEntries_LinkAndUnlinkWorkDay(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()

	a := testutil.InsertEntry(t, repos, entities.Entry{Type: model.EntryClockIn, TimestampServer: 1})
	b := testutil.InsertEntry(t, repos, entities.Entry{Type: model.EntryClockOut, TimestampServer: 2})

	require.NoError(t, repos.Entries.LinkWorkDay(ctx, []string{a.ID, b.ID}, "wd-1"))
	require.NoError(t, repos.Entries.UnlinkWorkDay(ctx, "wd-1", []string{a.ID}))

	got, err := repos.Entries.GetByIDs(ctx, testutil.OrgID, []string{a.ID, b.ID})
	require.NoError(t, err)
	require.NotNil(t, got[a.ID].WorkDayID)
	assert.Equal(t, "wd-1", *got[a.ID].WorkDayID)
	assert.Nil(t, got[b.ID].WorkDayID)

	require.NoError(t, repos.Entries.UnlinkWorkDay(ctx, "wd-1", nil))
	got, err = repos.Entries.GetByIDs(ctx, testutil.OrgID, []string{a.ID})
	require.NoError(t, err)
	assert.Nil(t, got[a.ID].WorkDayID)
}

func TestEntries_ListFiltersAndCounts(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()

	for i := range 5 {
		testutil.InsertEntry(t, repos, entities.Entry{Type: model.EntryClockIn, TimestampServer: int64(100 + i)})
	}
	testutil.InsertEntry(t, repos, entities.Entry{UserID: testutil.AdminID, Type: model.EntryClockIn, TimestampServer: 100})

	got, total, err := repos.Entries.List(ctx, repository.EntryFilter{
		OrgID: testutil.OrgID, UserID: testutil.EmployeeID, FromMs: 101, ToMs: 104, Limit: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, got, 2)
	assert.Equal(t, int64(101), got[0].TimestampServer)
}

func TestWorkDays_CreateUpdateDelete(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()

	first := int64(10)
	day := &entities.WorkDay{
		OrgID: testutil.OrgID, UserID: testutil.EmployeeID, LocationID: testutil.LocationID,
		Date: "2024-03-10", TotalMinutes: 450, BreakMinutes: 30, FirstClockIn: &first,
	}
	require.NoError(t, repos.WorkDays.Create(ctx, day))
	require.NotEmpty(t, day.ID)

	dup := &entities.WorkDay{
		OrgID: testutil.OrgID, UserID: testutil.EmployeeID, LocationID: testutil.LocationID, Date: "2024-03-10",
	}
	assert.ErrorIs(t, repos.WorkDays.Create(ctx, dup), repository.ErrDuplicateKey)

	// Zero values and NULLs overwrite the previous figures.
	day.TotalMinutes = 0
	day.BreakMinutes = 0
	day.FirstClockIn = nil
	require.NoError(t, repos.WorkDays.Update(ctx, day))

	got, err := repos.WorkDays.GetByKey(ctx, testutil.EmployeeID, testutil.LocationID, "2024-03-10")
	require.NoError(t, err)
	assert.Equal(t, 0, got.TotalMinutes)
	assert.Equal(t, 0, got.BreakMinutes)
	assert.Nil(t, got.FirstClockIn)

	require.NoError(t, repos.WorkDays.Delete(ctx, day.ID))
	_, err = repos.WorkDays.GetByKey(ctx, testutil.EmployeeID, testutil.LocationID, "2024-03-10")
	assert.ErrorIs(t, err, repository.ErrWorkDayNotFound)
	assert.ErrorIs(t, repos.WorkDays.Update(ctx, day), repository.ErrWorkDayNotFound)
}

func TestWorkDays_ListByDateRange(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()

	for _, date := range []string{"2024-03-09", "2024-03-10", "2024-03-11", "2024-03-12"} {
		require.NoError(t, repos.WorkDays.Create(ctx, &entities.WorkDay{
			OrgID: testutil.OrgID, UserID: testutil.EmployeeID, LocationID: testutil.LocationID, Date: date,
		}))
	}

	got, total, err := repos.WorkDays.List(ctx, repository.WorkDayFilter{
		OrgID: testutil.OrgID, From: "2024-03-10", To: "2024-03-11",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-03-10", got[0].Date)
	assert.Equal(t, "2024-03-11", got[1].Date)
}

func TestCorrections_UniquePerOperationAndEntry(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()

	newCorrection := func(entryID string) *entities.EntryCorrection {
		return &entities.EntryCorrection{
			OperationID: "op-1", EntryID: entryID, OrgID: testutil.OrgID, UserID: testutil.EmployeeID,
			Kind: model.CorrectionShift, CorrectedBy: testutil.AdminID, Reason: "forgot to clock out",
			Status: model.CorrectionApproved,
		}
	}

	require.NoError(t, repos.Corrections.Create(ctx, newCorrection("e1")))
	require.NoError(t, repos.Corrections.Create(ctx, newCorrection("e2")))
	assert.ErrorIs(t, repos.Corrections.Create(ctx, newCorrection("e1")), repository.ErrDuplicateKey)

	byOp, err := repos.Corrections.ListByOperation(ctx, "op-1")
	require.NoError(t, err)
	assert.Len(t, byOp, 2)

	got, err := repos.Corrections.GetByOperationAndEntry(ctx, "op-1", "e2")
	require.NoError(t, err)
	assert.Equal(t, model.CorrectionShift, got.Kind)

	_, err = repos.Corrections.GetByOperationAndEntry(ctx, "op-2", "e2")
	assert.ErrorIs(t, err, repository.ErrCorrectionNotFound)

	history, err := repos.Corrections.ListByEntry(ctx, testutil.OtherOrgID, "e1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestTransaction_RollsBackOnError(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()

	boom := errors.NewStd("boom")
	err := repos.Transaction(ctx, func(tx *repository.Repositories) error {
		require.NoError(t, tx.Corrections.Create(ctx, &entities.EntryCorrection{
			OperationID: "op", EntryID: "e", OrgID: testutil.OrgID, UserID: testutil.EmployeeID,
			Kind: model.CorrectionDelete, CorrectedBy: testutil.AdminID, Reason: "x",
			Status: model.CorrectionApproved,
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := repos.Corrections.ListByOperation(ctx, "op")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDirectory_ScopedLookups(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()

	org, err := repos.Directory.GetOrganization(ctx, testutil.OrgID)
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", org.Timezone)
	assert.Equal(t, 0, org.MinimumMinutes())

	member, err := repos.Directory.GetMember(ctx, testutil.OrgID, testutil.AdminID)
	require.NoError(t, err)
	assert.True(t, member.Role.IsAdmin())

	_, err = repos.Directory.GetMember(ctx, testutil.OrgID, testutil.OutsiderID)
	assert.ErrorIs(t, err, repository.ErrMemberNotFound)

	_, err = repos.Directory.GetLocation(ctx, testutil.OrgID, testutil.ForeignLocation)
	assert.ErrorIs(t, err, repository.ErrLocationNotFound)

	locations, err := repos.Directory.ListLocations(ctx, testutil.OrgID)
	require.NoError(t, err)
	require.Len(t, locations, 2)
	assert.Equal(t, "HQ", locations[0].Name)

	// Upsert changes the role in place.
	require.NoError(t, repos.Directory.SaveMember(ctx, &entities.Member{
		OrgID: testutil.OrgID, UserID: testutil.EmployeeID, Role: model.RoleAdmin,
	}))
	member, err = repos.Directory.GetMember(ctx, testutil.OrgID, testutil.EmployeeID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, member.Role)
}

func TestAudit_ListNewestFirst(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()

	for _, action := range []string{"entry.created", "entry.edited"} {
		require.NoError(t, repos.Audit.Create(ctx, &entities.AuditLog{
			OrgID: testutil.OrgID, ActorID: testutil.AdminID, Action: action, EntityType: "entry", EntityID: "e1",
		}))
	}
	require.NoError(t, repos.Audit.Create(ctx, &entities.AuditLog{
		OrgID: testutil.OtherOrgID, ActorID: testutil.OutsiderID, Action: "entry.created", EntityType: "entry",
	}))

	got, err := repos.Audit.List(ctx, repository.AuditFilter{OrgID: testutil.OrgID, EntityID: "e1"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestAllWorkDays_PagesPastMaxLimit(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()

	const rows = repository.MaxLimit + 5
	first := testutil.Millis(t, "2020-01-01T00:00:00Z")
	for i := range rows {
		date := time.UnixMilli(first).UTC().AddDate(0, 0, i).Format("2006-01-02")
		require.NoError(t, repos.WorkDays.Create(ctx, &entities.WorkDay{
			OrgID: testutil.OrgID, UserID: testutil.EmployeeID, LocationID: testutil.LocationID, Date: date,
		}))
	}

	got, err := repository.AllWorkDays(ctx, repos.WorkDays, repository.WorkDayFilter{OrgID: testutil.OrgID, Limit: 3})
	require.NoError(t, err)
	require.Len(t, got, rows)
	assert.Equal(t, "2020-01-01", got[0].Date)
	assert.Equal(t, "2022-10-01", got[len(got)-1].Date)
}

func TestWorkDays_LockByKeyInsideTransaction(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()

	require.NoError(t, repos.WorkDays.Create(ctx, &entities.WorkDay{
		OrgID: testutil.OrgID, UserID: testutil.EmployeeID, LocationID: testutil.LocationID,
		Date: "2024-06-03", TotalMinutes: 60,
	}))

	err := repos.Transaction(ctx, func(tx *repository.Repositories) error {
		day, err := tx.WorkDays.LockByKey(ctx, testutil.EmployeeID, testutil.LocationID, "2024-06-03")
		require.NoError(t, err)
		assert.Equal(t, 60, day.TotalMinutes)

		_, err = tx.WorkDays.LockByKey(ctx, testutil.EmployeeID, testutil.LocationID, "2024-06-04")
		assert.ErrorIs(t, err, repository.ErrWorkDayNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"duplicate key sentinel", repository.ErrDuplicateKey, true},
		{"wrapped duplicate", fmt.Errorf("insert: %w", repository.ErrDuplicateKey), true},
		{"mysql deadlock", &mysqldriver.MySQLError{Number: 1213, Message: "Deadlock found"}, true},
		{"mysql lock wait timeout", &mysqldriver.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}, true},
		{"other mysql error", &mysqldriver.MySQLError{Number: 1146, Message: "Table doesn't exist"}, false},
		{"not found", repository.ErrWorkDayNotFound, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, repository.IsRetryable(tt.err))
		})
	}
}
