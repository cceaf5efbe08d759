package repository

import (
	"context"

	"github.com/geoclock/timekeeper/internal/datastore/entities"
)

// CorrectionRepository provides append-only access to entry_corrections.
// There is deliberately no update or delete.
type CorrectionRepository interface {
	// Create appends a correction. Returns ErrDuplicateKey when the
	// (operation_id, entry_id) pair was already recorded.
	Create(ctx context.Context, correction *entities.EntryCorrection) error

	// GetByOperationAndEntry returns the correction an operation wrote for an entry.
	// Returns ErrCorrectionNotFound if none exists.
	GetByOperationAndEntry(ctx context.Context, operationID, entryID string) (*entities.EntryCorrection, error)

	// ListByOperation returns every correction written by an operation.
	ListByOperation(ctx context.Context, operationID string) ([]*entities.EntryCorrection, error)

	// ListByEntry returns the history of an entry oldest first. It works
	// for deleted entries too.
	ListByEntry(ctx context.Context, orgID, entryID string) ([]*entities.EntryCorrection, error)
}
