package punch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoclock/timekeeper/internal/datastore/repository"
	"github.com/geoclock/timekeeper/internal/errors"
	"github.com/geoclock/timekeeper/internal/ledger"
	"github.com/geoclock/timekeeper/internal/logger"
	"github.com/geoclock/timekeeper/internal/model"
	"github.com/geoclock/timekeeper/internal/testutil"
	"github.com/geoclock/timekeeper/internal/workday"
)

func TestClock(t *testing.T) {
	repos, _ := testutil.NewStore(t)
	testutil.Seed(t, repos, "America/New_York")
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	quiet := logger.NewSlogLogger(nil, logger.LogLevelError, time.UTC)
	now := time.Date(2024, 6, 4, 2, 30, 0, 0, time.UTC) // 22:30 EDT on 06-03
	svc := NewService(repos, workday.New(repos, workday.Options{Logger: quiet}), Options{
		Logger: quiet,
		Now:    func() time.Time { return now },
	})
	oc := ledger.OrgContext{OrgID: testutil.OrgID, ActorID: testutil.EmployeeID, Role: model.RoleEmployee, Timezone: ny}
	ctx := context.Background()

	lat, lon, acc := 40.7128, -74.006, 12.5
	client := now.Add(-3 * time.Second)
	res, err := svc.Clock(ctx, oc, ClockRequest{
		LocationID:      testutil.LocationID,
		Type:            model.EntryClockIn,
		ClientTimestamp: &client,
		Latitude:        &lat,
		Longitude:       &lon,
		Accuracy:        &acc,
	})
	require.NoError(t, err)
	require.NoError(t, res.ReconcileErr)

	assert.Equal(t, now.UnixMilli(), res.Entry.TimestampServer)
	require.NotNil(t, res.Entry.TimestampClient)
	assert.Equal(t, client.UnixMilli(), *res.Entry.TimestampClient)
	require.NotNil(t, res.Outcome)
	assert.Equal(t, workday.ActionCreated, res.Outcome.Action)
	assert.Equal(t, "2024-06-03", res.Outcome.Key.Date.String())

	corrections, err := repos.Corrections.ListByEntry(ctx, testutil.OrgID, res.Entry.ID)
	require.NoError(t, err)
	assert.Empty(t, corrections, "clock actions are not corrections")
}

func TestClock_Rejects(t *testing.T) {
	repos, _ := testutil.NewStore(t)
	testutil.Seed(t, repos, "UTC")
	quiet := logger.NewSlogLogger(nil, logger.LogLevelError, time.UTC)
	svc := NewService(repos, workday.New(repos, workday.Options{Logger: quiet}), Options{Logger: quiet})
	ctx := context.Background()

	member := ledger.OrgContext{OrgID: testutil.OrgID, ActorID: testutil.EmployeeID, Role: model.RoleEmployee}
	lat := 10.0

	_, err := svc.Clock(ctx, member, ClockRequest{LocationID: testutil.ForeignLocation, Type: model.EntryClockIn})
	assert.True(t, errors.IsNotFound(err))

	_, err = svc.Clock(ctx, member, ClockRequest{LocationID: testutil.LocationID, Type: "NAP"})
	assert.True(t, errors.IsValidation(err))

	_, err = svc.Clock(ctx, member, ClockRequest{LocationID: testutil.LocationID, Type: model.EntryClockIn, Latitude: &lat})
	assert.True(t, errors.IsValidation(err))

	outsider := ledger.OrgContext{OrgID: testutil.OrgID, ActorID: testutil.OutsiderID, Role: model.RoleEmployee}
	_, err = svc.Clock(ctx, outsider, ClockRequest{LocationID: testutil.LocationID, Type: model.EntryClockIn})
	assert.True(t, errors.IsForbidden(err))

	_, total, err := repos.Entries.List(ctx, repository.EntryFilter{OrgID: testutil.OrgID})
	require.NoError(t, err)
	assert.Zero(t, total)
}
