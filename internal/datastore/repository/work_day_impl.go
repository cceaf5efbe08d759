package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/geoclock/timekeeper/internal/datastore/entities"
)

// derivedColumns are the work day columns rewritten by every reconcile.
var derivedColumns = []string{
	"org_id", "total_minutes", "break_minutes", "meets_policy", "first_clock_in", "last_clock_out",
}

// workDayRepository implements WorkDayRepository.
type workDayRepository struct {
	db *gorm.DB
}

// NewWorkDayRepository creates a new WorkDayRepository.
func NewWorkDayRepository(db *gorm.DB) WorkDayRepository {
	return &workDayRepository{db: db}
}

// GetByKey retrieves the work day for a key.
func (r *workDayRepository) GetByKey(ctx context.Context, userID, locationID, date string) (*entities.WorkDay, error) {
	return r.getByKey(r.db.WithContext(ctx), userID, locationID, date)
}

// LockByKey retrieves the work day for a key with SELECT ... FOR UPDATE.
func (r *workDayRepository) LockByKey(ctx context.Context, userID, locationID, date string) (*entities.WorkDay, error) {
	q := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	return r.getByKey(q, userID, locationID, date)
}

func (r *workDayRepository) getByKey(q *gorm.DB, userID, locationID, date string) (*entities.WorkDay, error) {
	var day entities.WorkDay
	err := q.
		Where("user_id = ? AND location_id = ? AND date = ?", userID, locationID, date).
		First(&day).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWorkDayNotFound
	}
	if err != nil {
		return nil, err
	}
	return &day, nil
}

// GetByID retrieves a work day scoped to an organization.
func (r *workDayRepository) GetByID(ctx context.Context, orgID, id string) (*entities.WorkDay, error) {
	var day entities.WorkDay
	err := r.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", id, orgID).
		First(&day).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWorkDayNotFound
	}
	if err != nil {
		return nil, err
	}
	return &day, nil
}

// Create inserts a work day.
func (r *workDayRepository) Create(ctx context.Context, day *entities.WorkDay) error {
	err := r.db.WithContext(ctx).Create(day).Error
	if isDuplicateKey(err) {
		return ErrDuplicateKey
	}
	return err
}

// Update overwrites the derived columns, including zero values and NULLs.
func (r *workDayRepository) Update(ctx context.Context, day *entities.WorkDay) error {
	result := r.db.WithContext(ctx).
		Model(&entities.WorkDay{ID: day.ID}).
		Select(derivedColumns).
		Updates(day)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrWorkDayNotFound
	}
	return nil
}

// Delete removes a work day by ID. Deleting a missing row is not an error.
func (r *workDayRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&entities.WorkDay{}).Error
}

// List returns work days matching the filter and the total match count.
func (r *workDayRepository) List(ctx context.Context, filter WorkDayFilter) ([]*entities.WorkDay, int64, error) {
	query := r.db.WithContext(ctx).Model(&entities.WorkDay{})
	if filter.OrgID != "" {
		query = query.Where("org_id = ?", filter.OrgID)
	}
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.LocationID != "" {
		query = query.Where("location_id = ?", filter.LocationID)
	}
	// YYYY-MM-DD sorts lexically.
	if filter.From != "" {
		query = query.Where("date >= ?", filter.From)
	}
	if filter.To != "" {
		query = query.Where("date <= ?", filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var days []*entities.WorkDay
	err := query.
		Order("date ASC").
		Order("user_id ASC").
		Order("location_id ASC").
		Limit(clampLimit(filter.Limit)).
		Offset(filter.Offset).
		Find(&days).Error
	if err != nil {
		return nil, 0, err
	}
	return days, total, nil
}
