package entities

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WorkDay is the derived per (user, location, local date) aggregate. It is
// fully re-derivable from entries and carries no timestamps of its own, so
// two reconciles over the same entries write identical rows.
type WorkDay struct {
	ID           string `gorm:"primaryKey;type:varchar(36)"`
	OrgID        string `gorm:"type:varchar(36);not null;index"`
	UserID       string `gorm:"type:varchar(36);not null;uniqueIndex:idx_workday_key,priority:1"`
	LocationID   string `gorm:"type:varchar(36);not null;uniqueIndex:idx_workday_key,priority:2"`
	Date         string `gorm:"type:varchar(10);not null;uniqueIndex:idx_workday_key,priority:3;index"`
	TotalMinutes int    `gorm:"not null;default:0"`
	BreakMinutes int    `gorm:"not null;default:0"`
	MeetsPolicy  bool   `gorm:"not null;default:false"`
	FirstClockIn *int64
	LastClockOut *int64
}

// TableName returns the table name for GORM.
func (WorkDay) TableName() string {
	return "work_days"
}

// BeforeCreate assigns a UUID when none was provided.
func (w *WorkDay) BeforeCreate(*gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	return nil
}

// SameFigures reports whether two rows carry the same derived values.
func (w *WorkDay) SameFigures(other *WorkDay) bool {
	return w.OrgID == other.OrgID &&
		w.TotalMinutes == other.TotalMinutes &&
		w.BreakMinutes == other.BreakMinutes &&
		w.MeetsPolicy == other.MeetsPolicy &&
		equalMillis(w.FirstClockIn, other.FirstClockIn) &&
		equalMillis(w.LastClockOut, other.LastClockOut)
}

func equalMillis(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
