package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/geoclock/timekeeper/internal/datastore/entities"
)

// entryRepository implements EntryRepository.
type entryRepository struct {
	db *gorm.DB
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(db *gorm.DB) EntryRepository {
	return &entryRepository{db: db}
}

// Create inserts a new entry.
func (r *entryRepository) Create(ctx context.Context, entry *entities.Entry) error {
	err := r.db.WithContext(ctx).Create(entry).Error
	if isDuplicateKey(err) {
		return ErrDuplicateKey
	}
	return err
}

// GetByID retrieves an entry scoped to an organization.
func (r *entryRepository) GetByID(ctx context.Context, orgID, id string) (*entities.Entry, error) {
	var entry entities.Entry
	err := r.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", id, orgID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetForUpdate retrieves an entry and locks its row.
func (r *entryRepository) GetForUpdate(ctx context.Context, orgID, id string) (*entities.Entry, error) {
	var entry entities.Entry
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND org_id = ?", id, orgID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetByIDs retrieves entries in chunks to stay under parameter limits.
func (r *entryRepository) GetByIDs(ctx context.Context, orgID string, ids []string) (map[string]*entities.Entry, error) {
	result := make(map[string]*entities.Entry, len(ids))
	for start := 0; start < len(ids); start += idBatchSize {
		end := min(start+idBatchSize, len(ids))

		var chunk []*entities.Entry
		err := r.db.WithContext(ctx).
			Where("org_id = ? AND id IN ?", orgID, ids[start:end]).
			Find(&chunk).Error
		if err != nil {
			return nil, err
		}
		for _, e := range chunk {
			result[e.ID] = e
		}
	}
	return result, nil
}

// FindInRange returns the entries of (user, location) in [startMs, endMs).
func (r *entryRepository) FindInRange(ctx context.Context, userID, locationID string, startMs, endMs int64) ([]*entities.Entry, error) {
	var entries []*entities.Entry
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND location_id = ?", userID, locationID).
		Where("timestamp_server >= ? AND timestamp_server < ?", startMs, endMs).
		Order("timestamp_server ASC").
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// List returns entries matching the filter and the total match count.
func (r *entryRepository) List(ctx context.Context, filter EntryFilter) ([]*entities.Entry, int64, error) {
	query := r.db.WithContext(ctx).Model(&entities.Entry{})
	if filter.OrgID != "" {
		query = query.Where("org_id = ?", filter.OrgID)
	}
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.LocationID != "" {
		query = query.Where("location_id = ?", filter.LocationID)
	}
	if filter.FromMs != 0 {
		query = query.Where("timestamp_server >= ?", filter.FromMs)
	}
	if filter.ToMs != 0 {
		query = query.Where("timestamp_server < ?", filter.ToMs)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []*entities.Entry
	err := query.
		Order("timestamp_server ASC").
		Order("id ASC").
		Limit(clampLimit(filter.Limit)).
		Offset(filter.Offset).
		Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// Update writes the mutable columns of an entry.
func (r *entryRepository) Update(ctx context.Context, entry *entities.Entry) error {
	result := r.db.WithContext(ctx).
		Model(&entities.Entry{}).
		Where("id = ? AND org_id = ?", entry.ID, entry.OrgID).
		Updates(map[string]any{
			"type":             entry.Type,
			"location_id":      entry.LocationID,
			"timestamp_server": entry.TimestampServer,
			"timestamp_client": entry.TimestampClient,
			"notes":            entry.Notes,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// Delete removes an entry.
func (r *entryRepository) Delete(ctx context.Context, orgID, id string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", id, orgID).
		Delete(&entities.Entry{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// LinkWorkDay points the given entries at a work day.
func (r *entryRepository) LinkWorkDay(ctx context.Context, ids []string, workDayID string) error {
	for start := 0; start < len(ids); start += idBatchSize {
		end := min(start+idBatchSize, len(ids))
		err := r.db.WithContext(ctx).
			Model(&entities.Entry{}).
			Where("id IN ?", ids[start:end]).
			Update("work_day_id", workDayID).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// UnlinkWorkDay clears stale back-references to a work day.
func (r *entryRepository) UnlinkWorkDay(ctx context.Context, workDayID string, keepIDs []string) error {
	if len(keepIDs) > idBatchSize {
		return r.unlinkLarge(ctx, workDayID, keepIDs)
	}
	query := r.db.WithContext(ctx).
		Model(&entities.Entry{}).
		Where("work_day_id = ?", workDayID)
	if len(keepIDs) > 0 {
		query = query.Where("id NOT IN ?", keepIDs)
	}
	return query.Update("work_day_id", nil).Error
}

// unlinkLarge handles keep lists too large for a single NOT IN clause.
func (r *entryRepository) unlinkLarge(ctx context.Context, workDayID string, keepIDs []string) error {
	var linked []string
	err := r.db.WithContext(ctx).
		Model(&entities.Entry{}).
		Where("work_day_id = ?", workDayID).
		Pluck("id", &linked).Error
	if err != nil {
		return err
	}

	keep := make(map[string]struct{}, len(keepIDs))
	for _, id := range keepIDs {
		keep[id] = struct{}{}
	}
	var stale []string
	for _, id := range linked {
		if _, ok := keep[id]; !ok {
			stale = append(stale, id)
		}
	}

	for start := 0; start < len(stale); start += idBatchSize {
		end := min(start+idBatchSize, len(stale))
		err := r.db.WithContext(ctx).
			Model(&entities.Entry{}).
			Where("id IN ?", stale[start:end]).
			Update("work_day_id", nil).Error
		if err != nil {
			return err
		}
	}
	return nil
}
