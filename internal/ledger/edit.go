package ledger

import (
	"context"
	"strings"

	"github.com/geoclock/timekeeper/internal/datastore/entities"
	"github.com/geoclock/timekeeper/internal/datastore/repository"
	"github.com/geoclock/timekeeper/internal/model"
)

// Edit changes the timestamp, type, location or notes of one entry. The
// correction records the old values and every value that changed.
func (l *Ledger) Edit(ctx context.Context, oc OrgContext, req EditRequest) (*Result, error) {
	res, err := l.begin(oc, &req)
	if err != nil {
		return nil, err
	}

	var newLocation string
	if req.LocationID != nil {
		newLocation = strings.TrimSpace(*req.LocationID)
		if err := l.checkLocation(ctx, oc, newLocation); err != nil {
			res.Untouched = []string{req.EntryID}
			return l.finish(ctx, oc, res, emptyKeys(), nil, err)
		}
	}

	m := mutation{
		kind:   model.CorrectionEdit,
		reason: req.reason(),
		correct: func(e *entities.Entry, c *entities.EntryCorrection) {
			c.OldTimestamp = millis(e.TimestampServer)
			c.OldType = ptr(e.Type)
			c.OldLocationID = ptr(e.LocationID)

			next := e.TimestampServer
			if req.Timestamp != nil {
				next = req.Timestamp.UnixMilli()
			}
			c.NewTimestamp = millis(next)
			if req.Type != nil && *req.Type != e.Type {
				c.NewType = ptr(*req.Type)
			}
			if req.LocationID != nil && newLocation != e.LocationID {
				c.NewLocationID = ptr(newLocation)
			}
		},
		apply: func(ctx context.Context, tx *repository.Repositories, e *entities.Entry, c *entities.EntryCorrection) error {
			e.TimestampServer = *c.NewTimestamp
			if c.NewType != nil {
				e.Type = *c.NewType
			}
			if c.NewLocationID != nil {
				e.LocationID = *c.NewLocationID
			}
			if req.Notes != nil {
				e.Notes = cleanNotes(req.Notes)
			}
			return tx.Entries.Update(ctx, e)
		},
	}

	keys, err := l.run(ctx, oc, res.OperationID, []string{req.EntryID}, m, res)
	if err == nil && res.Entry == nil {
		if e, gerr := l.repos.Entries.GetByID(ctx, oc.OrgID, req.EntryID); gerr == nil {
			res.Entry = e
		}
	}

	details := map[string]any{"reason": m.reason}
	if res.Entry != nil {
		details["timestamp"] = res.Entry.TimestampServer
		details["type"] = string(res.Entry.Type)
		details["locationId"] = res.Entry.LocationID
	}
	return l.finish(ctx, oc, res, keys, details, err)
}
