package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/geoclock/timekeeper/internal/datastore"
	"github.com/geoclock/timekeeper/internal/datastore/entities"
	"github.com/geoclock/timekeeper/internal/datastore/repository"
	"github.com/geoclock/timekeeper/internal/logger"
	"github.com/geoclock/timekeeper/internal/model"
)

// Fixed identifiers used by Seed.
const (
	OrgID           = "00000000-0000-0000-0000-0000000000a1"
	OtherOrgID      = "00000000-0000-0000-0000-0000000000a2"
	AdminID         = "00000000-0000-0000-0000-0000000000b1"
	EmployeeID      = "00000000-0000-0000-0000-0000000000b2"
	OutsiderID      = "00000000-0000-0000-0000-0000000000b3"
	LocationID      = "00000000-0000-0000-0000-0000000000c1"
	OtherLocationID = "00000000-0000-0000-0000-0000000000c2"
	ForeignLocation = "00000000-0000-0000-0000-0000000000c3"
)

// NewStore opens a migrated SQLite database under t.TempDir and closes it
// when the test ends.
func NewStore(t *testing.T) (*repository.Repositories, datastore.Manager) {
	t.Helper()

	mgr, err := datastore.Open(datastore.OpenOptions{
		Type: datastore.TypeSQLite,
		SQLite: datastore.Config{
			Path: filepath.Join(t.TempDir(), "timekeeper.db"),
		},
		Logger: logger.NewSlogLogger(nil, logger.LogLevelError, time.UTC),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	return repository.New(mgr.DB()), mgr
}

// Seed creates two organizations. OrgID has an OWNER admin, an employee and
// two locations in timezone tz; OtherOrgID owns ForeignLocation and the
// outsider.
func Seed(t *testing.T, repos *repository.Repositories, tz string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, repos.Directory.SaveOrganization(ctx, &entities.Organization{
		ID: OrgID, Name: "Acme", Timezone: tz,
	}))
	require.NoError(t, repos.Directory.SaveOrganization(ctx, &entities.Organization{
		ID: OtherOrgID, Name: "Globex", Timezone: "UTC",
	}))

	for _, m := range []*entities.Member{
		{OrgID: OrgID, UserID: AdminID, Role: model.RoleOwner},
		{OrgID: OrgID, UserID: EmployeeID, Role: model.RoleEmployee},
		{OrgID: OtherOrgID, UserID: OutsiderID, Role: model.RoleAdmin},
	} {
		require.NoError(t, repos.Directory.SaveMember(ctx, m))
	}

	for _, l := range []*entities.Location{
		{ID: LocationID, OrgID: OrgID, Name: "HQ", Latitude: 40.7128, Longitude: -74.006, RadiusMeters: 150},
		{ID: OtherLocationID, OrgID: OrgID, Name: "Warehouse", Latitude: 40.73, Longitude: -73.99, RadiusMeters: 100},
		{ID: ForeignLocation, OrgID: OtherOrgID, Name: "Elsewhere", Latitude: 51.5, Longitude: -0.12, RadiusMeters: 100},
	} {
		require.NoError(t, repos.Directory.SaveLocation(ctx, l))
	}
}

// Millis parses an RFC 3339 instant into Unix milliseconds.
func Millis(t *testing.T, rfc3339 string) int64 {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, rfc3339)
	require.NoError(t, err)
	return ts.UnixMilli()
}

// InsertEntry stores a raw entry for EmployeeID at LocationID unless the
// caller overrides the fields.
func InsertEntry(t *testing.T, repos *repository.Repositories, entry entities.Entry) *entities.Entry {
	t.Helper()
	if entry.OrgID == "" {
		entry.OrgID = OrgID
	}
	if entry.UserID == "" {
		entry.UserID = EmployeeID
	}
	if entry.LocationID == "" {
		entry.LocationID = LocationID
	}
	require.NoError(t, repos.Entries.Create(context.Background(), &entry))
	return &entry
}
