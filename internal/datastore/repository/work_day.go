package repository

import (
	"context"

	"github.com/geoclock/timekeeper/internal/datastore/entities"
)

// WorkDayRepository provides access to the work_days table.
// Rows are unique per (user_id, location_id, date).
type WorkDayRepository interface {
	// GetByKey retrieves the work day for a (user, location, date) key.
	// Returns ErrWorkDayNotFound if not found.
	GetByKey(ctx context.Context, userID, locationID, date string) (*entities.WorkDay, error)

	// LockByKey is GetByKey holding a row lock until the transaction ends.
	// On MySQL a missing row takes a gap lock on the key, so concurrent
	// inserts of it block too. SQLite ignores the locking clause; its single
	// writer already serializes transactions.
	LockByKey(ctx context.Context, userID, locationID, date string) (*entities.WorkDay, error)

	// GetByID retrieves a work day scoped to an organization.
	GetByID(ctx context.Context, orgID, id string) (*entities.WorkDay, error)

	// Create inserts a work day. Returns ErrDuplicateKey if a row with the
	// same key already exists.
	Create(ctx context.Context, day *entities.WorkDay) error

	// Update overwrites every derived column of an existing row.
	Update(ctx context.Context, day *entities.WorkDay) error

	// Delete removes a work day by ID.
	Delete(ctx context.Context, id string) error

	// List returns work days matching the filter ordered by date, user and location.
	List(ctx context.Context, filter WorkDayFilter) ([]*entities.WorkDay, int64, error)
}

// AllWorkDays pages through every row matching filter at MaxLimit rows per
// query. filter.Limit and filter.Offset are ignored.
func AllWorkDays(ctx context.Context, repo WorkDayRepository, filter WorkDayFilter) ([]*entities.WorkDay, error) {
	filter.Limit = MaxLimit
	filter.Offset = 0
	var days []*entities.WorkDay
	for {
		page, total, err := repo.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		days = append(days, page...)
		if len(page) < filter.Limit || int64(len(days)) >= total {
			return days, nil
		}
		filter.Offset += len(page)
	}
}
