package repository

import (
	"context"

	"github.com/geoclock/timekeeper/internal/datastore/entities"
)

// EntryRepository provides access to the entries table.
type EntryRepository interface {
	// Create inserts a new entry. An empty ID is generated.
	Create(ctx context.Context, entry *entities.Entry) error

	// GetByID retrieves an entry scoped to an organization.
	// Returns ErrEntryNotFound if absent or owned by another organization.
	GetByID(ctx context.Context, orgID, id string) (*entities.Entry, error)

	// GetForUpdate is GetByID with a row lock held until the surrounding
	// transaction ends. SQLite relies on its single writer instead.
	GetForUpdate(ctx context.Context, orgID, id string) (*entities.Entry, error)

	// GetByIDs retrieves the entries of an organization by ID.
	// Missing IDs are absent from the returned map.
	GetByIDs(ctx context.Context, orgID string, ids []string) (map[string]*entities.Entry, error)

	// FindInRange returns the entries of (user, location) whose server
	// timestamp lies in [startMs, endMs), ordered by timestamp then ID.
	FindInRange(ctx context.Context, userID, locationID string, startMs, endMs int64) ([]*entities.Entry, error)

	// List returns entries matching the filter ordered by server timestamp.
	List(ctx context.Context, filter EntryFilter) ([]*entities.Entry, int64, error)

	// Update writes the mutable columns (type, location, timestamps, notes).
	// Returns ErrEntryNotFound if the row does not exist.
	Update(ctx context.Context, entry *entities.Entry) error

	// Delete removes an entry. Returns ErrEntryNotFound if absent.
	Delete(ctx context.Context, orgID, id string) error

	// LinkWorkDay points the given entries at a work day.
	LinkWorkDay(ctx context.Context, ids []string, workDayID string) error

	// UnlinkWorkDay clears the back-reference of entries pointing at the
	// work day, except those listed in keepIDs.
	UnlinkWorkDay(ctx context.Context, workDayID string, keepIDs []string) error
}
