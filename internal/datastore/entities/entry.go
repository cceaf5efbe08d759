package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/geoclock/timekeeper/internal/model"
)

// Entry is a single raw clock event. TimestampServer is authoritative and
// only changes through an audited correction.
type Entry struct {
	ID              string          `gorm:"primaryKey;type:varchar(36)"`
	OrgID           string          `gorm:"type:varchar(36);not null;index"`
	UserID          string          `gorm:"type:varchar(36);not null;index:idx_entry_user_location_time,priority:1"`
	LocationID      string          `gorm:"type:varchar(36);not null;index:idx_entry_user_location_time,priority:2"`
	Type            model.EntryType `gorm:"type:varchar(16);not null"`
	TimestampClient *int64
	TimestampServer int64 `gorm:"not null;index:idx_entry_user_location_time,priority:3"`
	Latitude        *float64
	Longitude       *float64
	Accuracy        *float64
	Notes           *string   `gorm:"type:text"`
	WorkDayID       *string   `gorm:"type:varchar(36);index"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for GORM.
func (Entry) TableName() string {
	return "entries"
}

// BeforeCreate assigns a UUID when none was provided.
func (e *Entry) BeforeCreate(*gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
