package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/geoclock/timekeeper/internal/datastore/entities"
)

// correctionRepository implements CorrectionRepository.
type correctionRepository struct {
	db *gorm.DB
}

// NewCorrectionRepository creates a new CorrectionRepository.
func NewCorrectionRepository(db *gorm.DB) CorrectionRepository {
	return &correctionRepository{db: db}
}

// Create appends a correction.
func (r *correctionRepository) Create(ctx context.Context, correction *entities.EntryCorrection) error {
	err := r.db.WithContext(ctx).Create(correction).Error
	if isDuplicateKey(err) {
		return ErrDuplicateKey
	}
	return err
}

// GetByOperationAndEntry returns the correction an operation wrote for an entry.
func (r *correctionRepository) GetByOperationAndEntry(ctx context.Context, operationID, entryID string) (*entities.EntryCorrection, error) {
	var correction entities.EntryCorrection
	err := r.db.WithContext(ctx).
		Where("operation_id = ? AND entry_id = ?", operationID, entryID).
		First(&correction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCorrectionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &correction, nil
}

// ListByOperation returns every correction written by an operation.
func (r *correctionRepository) ListByOperation(ctx context.Context, operationID string) ([]*entities.EntryCorrection, error) {
	var corrections []*entities.EntryCorrection
	err := r.db.WithContext(ctx).
		Where("operation_id = ?", operationID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&corrections).Error
	if err != nil {
		return nil, err
	}
	return corrections, nil
}

// ListByEntry returns the history of an entry oldest first.
func (r *correctionRepository) ListByEntry(ctx context.Context, orgID, entryID string) ([]*entities.EntryCorrection, error) {
	var corrections []*entities.EntryCorrection
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND entry_id = ?", orgID, entryID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&corrections).Error
	if err != nil {
		return nil, err
	}
	return corrections, nil
}
