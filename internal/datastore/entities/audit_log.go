package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditLog is the persisted form of an audit event.
type AuditLog struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)"`
	OrgID      string    `gorm:"type:varchar(36);not null;index:idx_audit_org_created,priority:1"`
	ActorID    string    `gorm:"type:varchar(36);not null"`
	Action     string    `gorm:"type:varchar(64);not null"`
	EntityType string    `gorm:"type:varchar(32);not null"`
	EntityID   string    `gorm:"type:varchar(36)"`
	Details    string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index:idx_audit_org_created,priority:2"`
}

// TableName returns the table name for GORM.
func (AuditLog) TableName() string {
	return "audit_logs"
}

// BeforeCreate assigns a UUID when none was provided.
func (a *AuditLog) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// All lists every model for AutoMigrate in dependency order.
func All() []any {
	return []any{
		&Organization{},
		&Member{},
		&Location{},
		&WorkDay{},
		&Entry{},
		&EntryCorrection{},
		&AuditLog{},
	}
}
