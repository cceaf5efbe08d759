package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/geoclock/timekeeper/internal/model"
)

// EntryCorrection is an append-only record of one administrative mutation
// of one entry. Rows are never updated or deleted and outlive the entry
// they describe. (OperationID, EntryID) is unique, which makes a retried
// bulk operation skip the entries it already handled.
type EntryCorrection struct {
	ID            string               `gorm:"primaryKey;type:varchar(36)"`
	OperationID   string               `gorm:"type:varchar(36);not null;uniqueIndex:idx_correction_operation_entry,priority:1"`
	EntryID       string               `gorm:"type:varchar(36);not null;uniqueIndex:idx_correction_operation_entry,priority:2;index"`
	OrgID         string               `gorm:"type:varchar(36);not null;index"`
	UserID        string               `gorm:"type:varchar(36);not null;index"`
	Kind          model.CorrectionKind `gorm:"type:varchar(16);not null"`
	CorrectedBy   string               `gorm:"type:varchar(36);not null"`
	OldTimestamp  *int64
	NewTimestamp  *int64
	OldType       *model.EntryType       `gorm:"type:varchar(16)"`
	NewType       *model.EntryType       `gorm:"type:varchar(16)"`
	OldLocationID *string                `gorm:"type:varchar(36)"`
	NewLocationID *string                `gorm:"type:varchar(36)"`
	Reason        string                 `gorm:"type:text;not null"`
	Status        model.CorrectionStatus `gorm:"type:varchar(16);not null"`
	CreatedAt     time.Time              `gorm:"autoCreateTime;index"`
}

// TableName returns the table name for GORM.
func (EntryCorrection) TableName() string {
	return "entry_corrections"
}

// BeforeCreate assigns a UUID when none was provided.
func (c *EntryCorrection) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
