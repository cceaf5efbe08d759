package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repositories groups every repository bound to the same database handle.
type Repositories struct {
	db *gorm.DB

	Entries     EntryRepository
	WorkDays    WorkDayRepository
	Corrections CorrectionRepository
	Directory   DirectoryRepository
	Audit       AuditRepository
}

// New binds all repositories to db.
func New(db *gorm.DB) *Repositories {
	return &Repositories{
		db:          db,
		Entries:     NewEntryRepository(db),
		WorkDays:    NewWorkDayRepository(db),
		Corrections: NewCorrectionRepository(db),
		Directory:   NewDirectoryRepository(db),
		Audit:       NewAuditRepository(db),
	}
}

// DB returns the underlying handle.
func (r *Repositories) DB() *gorm.DB {
	return r.db
}

// Transaction runs fn with repositories bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}
