package ledger

import (
	"context"

	"github.com/geoclock/timekeeper/internal/datastore/entities"
	"github.com/geoclock/timekeeper/internal/datastore/repository"
	"github.com/geoclock/timekeeper/internal/errors"
)

// Corrections returns the history of an entry oldest first. Deleted
// entries are found through their tombstone. Members that are not
// administrators only see the history of their own entries.
func (l *Ledger) Corrections(ctx context.Context, oc OrgContext, entryID string) ([]*entities.EntryCorrection, error) {
	if err := oc.requireMember(); err != nil {
		return nil, err
	}
	if entryID == "" {
		return nil, errors.ValidationError("entryId", "is required")
	}

	list, err := l.repos.Corrections.ListByEntry(ctx, oc.OrgID, entryID)
	if err != nil {
		return nil, l.storageError(err, "", "list corrections")
	}

	var owner string
	if len(list) > 0 {
		owner = list[0].UserID
	} else {
		e, err := l.repos.Entries.GetByID(ctx, oc.OrgID, entryID)
		switch {
		case errors.Is(err, repository.ErrEntryNotFound):
			return nil, errors.NotFoundError("entry", entryID)
		case err != nil:
			return nil, l.storageError(err, "", "load entry")
		}
		owner = e.UserID
	}

	if !oc.Role.IsAdmin() && owner != oc.ActorID {
		return nil, errors.ForbiddenError("only administrators may read other members' corrections")
	}
	return list, nil
}
