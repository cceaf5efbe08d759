package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/geoclock/timekeeper/internal/model"
)

// Organization owns members and locations. Timezone is the default zone
// for its local days; DailyMinimumMinutes overrides the policy minimum.
type Organization struct {
	ID                  string `gorm:"primaryKey;type:varchar(36)"`
	Name                string `gorm:"type:varchar(200);not null"`
	Timezone            string `gorm:"type:varchar(64);not null;default:'UTC'"`
	DailyMinimumMinutes *int
	CreatedAt           time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for GORM.
func (Organization) TableName() string {
	return "organizations"
}

// BeforeCreate assigns a UUID when none was provided.
func (o *Organization) BeforeCreate(*gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// MinimumMinutes returns the organization override or 0 for "use the
// configured default".
func (o *Organization) MinimumMinutes() int {
	if o == nil || o.DailyMinimumMinutes == nil {
		return 0
	}
	return *o.DailyMinimumMinutes
}

// Member links a user to an organization with a role.
type Member struct {
	OrgID     string     `gorm:"primaryKey;type:varchar(36)"`
	UserID    string     `gorm:"primaryKey;type:varchar(36);index"`
	Role      model.Role `gorm:"type:varchar(16);not null"`
	CreatedAt time.Time  `gorm:"autoCreateTime"`
}

// TableName returns the table name for GORM.
func (Member) TableName() string {
	return "members"
}

// Location is a geofenced workplace of an organization.
type Location struct {
	ID           string  `gorm:"primaryKey;type:varchar(36)"`
	OrgID        string  `gorm:"type:varchar(36);not null;index"`
	Name         string  `gorm:"type:varchar(200);not null"`
	Latitude     float64 `gorm:"not null"`
	Longitude    float64 `gorm:"not null"`
	RadiusMeters int     `gorm:"not null;default:100"`
}

// TableName returns the table name for GORM.
func (Location) TableName() string {
	return "locations"
}

// BeforeCreate assigns a UUID when none was provided.
func (l *Location) BeforeCreate(*gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
