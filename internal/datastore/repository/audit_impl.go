package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/geoclock/timekeeper/internal/datastore/entities"
)

// auditRepository implements AuditRepository.
type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

// Create appends an audit log row.
func (r *auditRepository) Create(ctx context.Context, log *entities.AuditLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// List returns audit rows newest first.
func (r *auditRepository) List(ctx context.Context, filter AuditFilter) ([]*entities.AuditLog, error) {
	query := r.db.WithContext(ctx).Model(&entities.AuditLog{})
	if filter.OrgID != "" {
		query = query.Where("org_id = ?", filter.OrgID)
	}
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != "" {
		query = query.Where("entity_id = ?", filter.EntityID)
	}

	var logs []*entities.AuditLog
	err := query.
		Order("created_at DESC").
		Limit(clampLimit(filter.Limit)).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}
