package ledger

import (
	"context"

	"github.com/geoclock/timekeeper/internal/datastore/entities"
	"github.com/geoclock/timekeeper/internal/datastore/repository"
	"github.com/geoclock/timekeeper/internal/model"
	"github.com/geoclock/timekeeper/internal/workday"
)

// BulkShift moves every entry by req.ShiftMinutes. The days the entries
// left and the days they landed on are all reconciled once at the end.
func (l *Ledger) BulkShift(ctx context.Context, oc OrgContext, req ShiftRequest) (*Result, error) {
	res, err := l.begin(oc, &req)
	if err != nil {
		return nil, err
	}

	delta := int64(req.ShiftMinutes) * 60_000
	m := mutation{
		kind:   model.CorrectionShift,
		reason: req.reason(),
		correct: func(e *entities.Entry, c *entities.EntryCorrection) {
			c.OldTimestamp = millis(e.TimestampServer)
			c.NewTimestamp = millis(e.TimestampServer + delta)
			c.OldType = ptr(e.Type)
			c.OldLocationID = ptr(e.LocationID)
		},
		apply: func(ctx context.Context, tx *repository.Repositories, e *entities.Entry, c *entities.EntryCorrection) error {
			e.TimestampServer = *c.NewTimestamp
			return tx.Entries.Update(ctx, e)
		},
	}

	keys, err := l.run(ctx, oc, res.OperationID, req.EntryIDs, m, res)
	res.Entry = nil
	return l.finish(ctx, oc, res, keys, map[string]any{
		"shiftMinutes": req.ShiftMinutes,
		"reason":       m.reason,
	}, err)
}

// Delete removes entries. Each leaves an immutable correction carrying its
// last type, timestamp and location, with the reason marked as a deletion.
func (l *Ledger) Delete(ctx context.Context, oc OrgContext, req DeleteRequest) (*Result, error) {
	res, err := l.begin(oc, &req)
	if err != nil {
		return nil, err
	}

	m := mutation{
		kind:   model.CorrectionDelete,
		reason: model.DeletedReasonPrefix + req.reason(),
		correct: func(e *entities.Entry, c *entities.EntryCorrection) {
			c.OldTimestamp = millis(e.TimestampServer)
			c.OldType = ptr(e.Type)
			c.OldLocationID = ptr(e.LocationID)
		},
		apply: func(ctx context.Context, tx *repository.Repositories, e *entities.Entry, _ *entities.EntryCorrection) error {
			return tx.Entries.Delete(ctx, e.OrgID, e.ID)
		},
	}

	keys, err := l.run(ctx, oc, res.OperationID, req.EntryIDs, m, res)
	res.Entry = nil
	return l.finish(ctx, oc, res, keys, map[string]any{"reason": m.reason}, err)
}

func emptyKeys() workday.KeySet {
	return workday.KeySet{}
}
