//go:build integration && mysql

// Run with: go test -tags="integration,mysql" -v ./internal/datastore/...
//
// When MYSQL_TEST_PASSWORD is set the test uses an existing server:
//
//	MYSQL_TEST_HOST (default: localhost)
//	MYSQL_TEST_PORT (default: 3306)
//	MYSQL_TEST_USER (default: timekeeper)
//	MYSQL_TEST_PASSWORD
//	MYSQL_TEST_DATABASE (default: timekeeper_test)
//
// Otherwise a MySQL container is started with testcontainers.
package datastore_test

import (
	"context"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/geoclock/timekeeper/internal/datastore"
	"github.com/geoclock/timekeeper/internal/datastore/entities"
	"github.com/geoclock/timekeeper/internal/datastore/repository"
	"github.com/geoclock/timekeeper/internal/logger"
	"github.com/geoclock/timekeeper/internal/model"
	"github.com/geoclock/timekeeper/internal/workday"
)

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getMySQLConfig(t *testing.T) *datastore.MySQLConfig {
	t.Helper()

	if password := os.Getenv("MYSQL_TEST_PASSWORD"); password != "" {
		return &datastore.MySQLConfig{
			Host:     getEnvOrDefault("MYSQL_TEST_HOST", "localhost"),
			Port:     getEnvOrDefault("MYSQL_TEST_PORT", "3306"),
			Username: getEnvOrDefault("MYSQL_TEST_USER", "timekeeper"),
			Password: password,
			Database: getEnvOrDefault("MYSQL_TEST_DATABASE", "timekeeper_test"),
		}
	}

	ctx := context.Background()
	container, err := tcmysql.Run(ctx, "mysql:8.4",
		tcmysql.WithDatabase("timekeeper_test"),
		tcmysql.WithUsername("timekeeper"),
		tcmysql.WithPassword("timekeeper"),
	)
	testcontainers.CleanupContainer(t, container)
	if err != nil {
		t.Skipf("Skipping MySQL test: container unavailable: %v", err)
	}

	conn, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	parsed, err := mysqldriver.ParseDSN(conn)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(parsed.Addr)
	require.NoError(t, err)

	return &datastore.MySQLConfig{
		Host:     host,
		Port:     port,
		Username: parsed.User,
		Password: parsed.Passwd,
		Database: parsed.DBName,
	}
}

func TestMySQL_RepositoriesRoundTrip(t *testing.T) {
	cfg := getMySQLConfig(t)

	mgr, err := datastore.NewMySQLManager(cfg)
	require.NoError(t, err, "failed to create MySQL manager")
	t.Cleanup(func() {
		_ = mgr.DropAll()
		_ = mgr.Close()
	})
	require.NoError(t, mgr.Initialize())
	require.True(t, mgr.IsMySQL())

	ctx := context.Background()
	repos := repository.New(mgr.DB())

	entry := &entities.Entry{
		OrgID: "org", UserID: "user", LocationID: "loc",
		Type: model.EntryClockIn, TimestampServer: 1_700_000_000_000,
	}
	require.NoError(t, repos.Entries.Create(ctx, entry))

	// An unchanged update still counts the matched row.
	require.NoError(t, repos.Entries.Update(ctx, entry))

	day := &entities.WorkDay{OrgID: "org", UserID: "user", LocationID: "loc", Date: "2023-11-14"}
	require.NoError(t, repos.WorkDays.Create(ctx, day))
	dup := &entities.WorkDay{OrgID: "org", UserID: "user", LocationID: "loc", Date: "2023-11-14"}
	assert.ErrorIs(t, repos.WorkDays.Create(ctx, dup), repository.ErrDuplicateKey)

	correction := &entities.EntryCorrection{
		OperationID: "op", EntryID: entry.ID, OrgID: "org", UserID: "user",
		Kind: model.CorrectionEdit, CorrectedBy: "admin", Reason: "typo", Status: model.CorrectionApproved,
	}
	require.NoError(t, repos.Corrections.Create(ctx, correction))
	again := *correction
	again.ID = ""
	assert.ErrorIs(t, repos.Corrections.Create(ctx, &again), repository.ErrDuplicateKey)
}

// Two aggregators with separate in-process lockers stand in for two
// processes. Every writer reconciles after committing its own entries, so
// the last reconcile to commit must reflect all of them.
func TestMySQL_ReconcileAcrossProcessesConverges(t *testing.T) {
	cfg := getMySQLConfig(t)

	mgr, err := datastore.NewMySQLManager(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = mgr.DropAll()
		_ = mgr.Close()
	})
	require.NoError(t, mgr.Initialize())

	ctx := context.Background()
	repos := repository.New(mgr.DB())
	quiet := logger.NewSlogLogger(nil, logger.LogLevelError, time.UTC)
	aggregators := []*workday.Aggregator{
		workday.New(repos, workday.Options{Logger: quiet}),
		workday.New(repos, workday.Options{Logger: quiet}),
	}

	base := time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)
	key := workday.KeyAt("org", "user", "loc", base.UnixMilli(), time.UTC)

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			in := base.Add(time.Duration(i) * time.Hour)
			for _, e := range []*entities.Entry{
				{OrgID: "org", UserID: "user", LocationID: "loc", Type: model.EntryClockIn, TimestampServer: in.UnixMilli()},
				{OrgID: "org", UserID: "user", LocationID: "loc", Type: model.EntryClockOut, TimestampServer: in.Add(30 * time.Minute).UnixMilli()},
			} {
				if err := repos.Entries.Create(ctx, e); err != nil {
					errs <- err
					return
				}
			}
			if _, err := aggregators[i%2].Reconcile(ctx, key); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	day, err := repos.WorkDays.GetByKey(ctx, "user", "loc", key.Date.String())
	require.NoError(t, err)
	assert.Equal(t, writers*30, day.TotalMinutes)

	outcome, err := aggregators[0].Reconcile(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, workday.ActionUnchanged, outcome.Action)
}
