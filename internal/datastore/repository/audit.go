package repository

import (
	"context"

	"github.com/geoclock/timekeeper/internal/datastore/entities"
)

// AuditRepository persists audit events.
type AuditRepository interface {
	// Create appends an audit log row.
	Create(ctx context.Context, log *entities.AuditLog) error

	// List returns audit rows newest first.
	List(ctx context.Context, filter AuditFilter) ([]*entities.AuditLog, error)
}
