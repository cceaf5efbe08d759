package ledger

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/geoclock/timekeeper/internal/datastore/entities"
	"github.com/geoclock/timekeeper/internal/datastore/repository"
	"github.com/geoclock/timekeeper/internal/errors"
	"github.com/geoclock/timekeeper/internal/model"
)

// entryNamespace derives the id of a created entry from its operation, so
// a retried create targets the entry the first attempt inserted.
var entryNamespace = uuid.MustParse("6b0f3c2e-6d1a-4c53-9a57-2f4f0c1d7e90")

// Create inserts an entry for a member of the actor's organization.
func (l *Ledger) Create(ctx context.Context, oc OrgContext, req CreateRequest) (*Result, error) {
	res, err := l.begin(oc, &req)
	if err != nil {
		return nil, err
	}
	opID := res.OperationID
	entryID := uuid.NewSHA1(entryNamespace, []byte(oc.OrgID+"/"+opID)).String()

	fail := func(err error) (*Result, error) {
		res.Untouched = []string{entryID}
		return l.finish(ctx, oc, res, emptyKeys(), nil, err)
	}

	if err := l.checkMember(ctx, oc, req.UserID); err != nil {
		return fail(err)
	}
	if err := l.checkLocation(ctx, oc, req.LocationID); err != nil {
		return fail(err)
	}

	prior, err := l.priorCorrections(ctx, oc, opID, model.CorrectionCreate)
	if err != nil {
		return fail(err)
	}
	if c, ok := prior[entryID]; ok {
		return l.replayCreate(ctx, oc, res, c)
	}

	entry := &entities.Entry{
		ID:              entryID,
		OrgID:           oc.OrgID,
		UserID:          req.UserID,
		LocationID:      req.LocationID,
		Type:            req.Type,
		TimestampServer: req.Timestamp.UnixMilli(),
		Notes:           cleanNotes(req.Notes),
	}
	correction := &entities.EntryCorrection{
		OperationID:   opID,
		EntryID:       entryID,
		OrgID:         oc.OrgID,
		UserID:        req.UserID,
		Kind:          model.CorrectionCreate,
		CorrectedBy:   oc.ActorID,
		NewTimestamp:  millis(entry.TimestampServer),
		NewType:       ptr(entry.Type),
		NewLocationID: ptr(entry.LocationID),
		Reason:        req.reason(),
		Status:        model.CorrectionApproved,
	}

	err = l.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.Corrections.Create(ctx, correction); err != nil {
			return err
		}
		return tx.Entries.Create(ctx, entry)
	})
	if errors.Is(err, repository.ErrDuplicateKey) {
		c, gerr := l.repos.Corrections.GetByOperationAndEntry(ctx, opID, entryID)
		if gerr != nil {
			return fail(l.storageError(gerr, opID, "load correction"))
		}
		return l.replayCreate(ctx, oc, res, c)
	}
	if err != nil {
		return fail(l.storageError(err, opID, "create"))
	}

	res.Applied = []string{entryID}
	res.Entry = entry
	l.metrics.RecordCorrection(string(model.CorrectionCreate))

	return l.finish(ctx, oc, res, oc.keys(nil, StateOf(entry)), map[string]any{
		"userId":     entry.UserID,
		"locationId": entry.LocationID,
		"type":       string(entry.Type),
		"timestamp":  entry.TimestampServer,
		"reason":     correction.Reason,
	}, nil)
}

// replayCreate reports a create whose correction already exists. The entry
// may have been deleted since; its keys still come from the correction.
func (l *Ledger) replayCreate(ctx context.Context, oc OrgContext, res *Result, c *entities.EntryCorrection) (*Result, error) {
	res.AlreadyApplied = []string{c.EntryID}
	if e, err := l.repos.Entries.GetByID(ctx, oc.OrgID, c.EntryID); err == nil {
		res.Entry = e
	}
	return l.finish(ctx, oc, res, oc.keys(CorrectionStates(c)), nil, nil)
}

func (l *Ledger) checkMember(ctx context.Context, oc OrgContext, userID string) error {
	_, err := l.repos.Directory.GetMember(ctx, oc.OrgID, userID)
	switch {
	case errors.Is(err, repository.ErrMemberNotFound):
		return errors.NotFoundError("user", userID)
	case err != nil:
		return l.storageError(err, "", "load member")
	}
	return nil
}

func (l *Ledger) checkLocation(ctx context.Context, oc OrgContext, locationID string) error {
	_, err := l.repos.Directory.GetLocation(ctx, oc.OrgID, locationID)
	switch {
	case errors.Is(err, repository.ErrLocationNotFound):
		return errors.NotFoundError("location", locationID)
	case err != nil:
		return l.storageError(err, "", "load location")
	}
	return nil
}

// cleanNotes maps blank notes to NULL.
func cleanNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	s := strings.TrimSpace(*notes)
	if s == "" {
		return nil
	}
	return &s
}
