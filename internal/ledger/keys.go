package ledger

import (
	"time"

	"github.com/geoclock/timekeeper/internal/datastore/entities"
	"github.com/geoclock/timekeeper/internal/workday"
)

// EntryState is the part of an entry that decides which work day it
// belongs to.
type EntryState struct {
	OrgID      string
	UserID     string
	LocationID string
	// At is the server timestamp in Unix milliseconds.
	At int64
}

// StateOf returns the state of a stored entry.
func StateOf(e *entities.Entry) *EntryState {
	if e == nil {
		return nil
	}
	return &EntryState{OrgID: e.OrgID, UserID: e.UserID, LocationID: e.LocationID, At: e.TimestampServer}
}

// AffectedKeys returns the work day keys touched by moving an entry from
// old to updated. A nil old is a creation, a nil updated a deletion.
func AffectedKeys(old, updated *EntryState, tz *time.Location) workday.KeySet {
	var set workday.KeySet
	for _, s := range []*EntryState{old, updated} {
		if s == nil {
			continue
		}
		set.Add(workday.KeyAt(s.OrgID, s.UserID, s.LocationID, s.At, tz))
	}
	return set
}

// CorrectionStates rebuilds the before and after states a correction
// describes. Retries use it to find the keys of entries they no longer
// need to touch, including deleted ones.
func CorrectionStates(c *entities.EntryCorrection) (old, updated *EntryState) {
	if c.OldTimestamp != nil && c.OldLocationID != nil {
		old = &EntryState{OrgID: c.OrgID, UserID: c.UserID, LocationID: *c.OldLocationID, At: *c.OldTimestamp}
	}
	if c.NewTimestamp != nil {
		loc := c.NewLocationID
		if loc == nil {
			loc = c.OldLocationID
		}
		if loc != nil {
			updated = &EntryState{OrgID: c.OrgID, UserID: c.UserID, LocationID: *loc, At: *c.NewTimestamp}
		}
	}
	return old, updated
}
