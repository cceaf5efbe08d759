package dto

import (
	"time"

	"github.com/geoclock/timekeeper/internal/datastore/entities"
	"github.com/geoclock/timekeeper/internal/ledger"
)

// Correction is one correction ledger row.
type Correction struct {
	ID            string  `json:"id"`
	OperationID   string  `json:"operationId"`
	EntryID       string  `json:"entryId"`
	UserID        string  `json:"userId"`
	Kind          string  `json:"kind"`
	CorrectedBy   string  `json:"correctedBy"`
	OldTimestamp  *string `json:"oldTimestamp"`
	NewTimestamp  *string `json:"newTimestamp"`
	OldType       *string `json:"oldType"`
	NewType       *string `json:"newType"`
	OldLocationID *string `json:"oldLocationId"`
	NewLocationID *string `json:"newLocationId"`
	Reason        string  `json:"reason"`
	Status        string  `json:"status"`
	CreatedAt     string  `json:"createdAt"`
}

// NewCorrection converts an entity.
func NewCorrection(c *entities.EntryCorrection, loc *time.Location) Correction {
	out := Correction{
		ID:            c.ID,
		OperationID:   c.OperationID,
		EntryID:       c.EntryID,
		UserID:        c.UserID,
		Kind:          string(c.Kind),
		CorrectedBy:   c.CorrectedBy,
		OldTimestamp:  FormatMillis(c.OldTimestamp, loc),
		NewTimestamp:  FormatMillis(c.NewTimestamp, loc),
		OldLocationID: c.OldLocationID,
		NewLocationID: c.NewLocationID,
		Reason:        c.Reason,
		Status:        string(c.Status),
		CreatedAt:     c.CreatedAt.In(orUTC(loc)).Format(time.RFC3339),
	}
	if c.OldType != nil {
		s := string(*c.OldType)
		out.OldType = &s
	}
	if c.NewType != nil {
		s := string(*c.NewType)
		out.NewType = &s
	}
	return out
}

// NewCorrections converts a slice, keeping order.
func NewCorrections(list []*entities.EntryCorrection, loc *time.Location) []Correction {
	out := make([]Correction, 0, len(list))
	for _, c := range list {
		out = append(out, NewCorrection(c, loc))
	}
	return out
}

// Result is the outcome of a correction operation.
type Result struct {
	OperationID     string    `json:"operationId"`
	Kind            string    `json:"kind"`
	Applied         []string  `json:"applied"`
	AlreadyApplied  []string  `json:"alreadyApplied"`
	Untouched       []string  `json:"untouched"`
	Reconciled      []Outcome `json:"reconciled"`
	ReconcileFailed []Failure `json:"reconcileFailed"`
	Partial         bool      `json:"partial"`
	Entry           *Entry    `json:"entry,omitempty"`
}

// NewResult converts a ledger result. Nil stays nil.
func NewResult(r *ledger.Result, loc *time.Location) *Result {
	if r == nil {
		return nil
	}
	out := &Result{
		OperationID:     r.OperationID,
		Kind:            string(r.Kind),
		Applied:         nonNil(r.Applied),
		AlreadyApplied:  nonNil(r.AlreadyApplied),
		Untouched:       nonNil(r.Untouched),
		Reconciled:      make([]Outcome, 0, len(r.Reconciled)),
		ReconcileFailed: make([]Failure, 0, len(r.ReconcileFailed)),
		Partial:         r.Partial(),
		Entry:           NewEntry(r.Entry, loc),
	}
	for _, o := range r.Reconciled {
		out.Reconciled = append(out.Reconciled, NewOutcome(o, loc))
	}
	for _, f := range r.ReconcileFailed {
		out.ReconcileFailed = append(out.ReconcileFailed, NewFailure(f))
	}
	return out
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
