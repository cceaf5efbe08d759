package audit

import (
	"context"
	"encoding/json"

	"github.com/geoclock/timekeeper/internal/datastore/entities"
	"github.com/geoclock/timekeeper/internal/datastore/repository"
	"github.com/geoclock/timekeeper/internal/errors"
)

// StoreSink persists events to the audit_logs table.
type StoreSink struct {
	repo repository.AuditRepository
}

// NewStoreSink creates a StoreSink.
func NewStoreSink(repo repository.AuditRepository) *StoreSink {
	return &StoreSink{repo: repo}
}

// Name implements Backend.
func (s *StoreSink) Name() string {
	return "store"
}

// Write implements Backend.
func (s *StoreSink) Write(ctx context.Context, event Event) error {
	var details string
	if len(event.Details) > 0 {
		b, err := json.Marshal(event.Details)
		if err != nil {
			return errors.New(err).
				Component("audit").
				Category(errors.CategoryAudit).
				Context("action", event.Action).
				Build()
		}
		details = string(b)
	}

	return s.repo.Create(ctx, &entities.AuditLog{
		OrgID:      event.OrgID,
		ActorID:    event.ActorID,
		Action:     event.Action,
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		Details:    details,
		CreatedAt:  event.At,
	})
}
