package dto

import (
	"time"

	"github.com/geoclock/timekeeper/internal/datastore/entities"
	"github.com/geoclock/timekeeper/internal/workday"
)

// WorkDay is the derived daily aggregate.
type WorkDay struct {
	ID           string  `json:"id"`
	UserID       string  `json:"userId"`
	LocationID   string  `json:"locationId"`
	Date         string  `json:"date"`
	TotalMinutes int     `json:"totalMinutes"`
	BreakMinutes int     `json:"breakMinutes"`
	MeetsPolicy  bool    `json:"meetsPolicy"`
	FirstClockIn *string `json:"firstClockIn"`
	LastClockOut *string `json:"lastClockOut"`
}

// NewWorkDay converts an entity.
func NewWorkDay(w *entities.WorkDay, loc *time.Location) *WorkDay {
	if w == nil {
		return nil
	}
	return &WorkDay{
		ID:           w.ID,
		UserID:       w.UserID,
		LocationID:   w.LocationID,
		Date:         w.Date,
		TotalMinutes: w.TotalMinutes,
		BreakMinutes: w.BreakMinutes,
		MeetsPolicy:  w.MeetsPolicy,
		FirstClockIn: FormatMillis(w.FirstClockIn, loc),
		LastClockOut: FormatMillis(w.LastClockOut, loc),
	}
}

// NewWorkDays converts a slice, keeping order.
func NewWorkDays(list []*entities.WorkDay, loc *time.Location) []*WorkDay {
	out := make([]*WorkDay, 0, len(list))
	for _, w := range list {
		out = append(out, NewWorkDay(w, loc))
	}
	return out
}

// Anomaly is a data-quality finding of a reconcile.
type Anomaly struct {
	Kind    string `json:"kind"`
	EntryID string `json:"entryId"`
	At      string `json:"at"`
}

// Outcome is the result of reconciling one work day.
type Outcome struct {
	UserID     string    `json:"userId"`
	LocationID string    `json:"locationId"`
	Date       string    `json:"date"`
	Action     string    `json:"action"`
	WorkDay    *WorkDay  `json:"workDay,omitempty"`
	Anomalies  []Anomaly `json:"anomalies,omitempty"`
}

// Failure is a work day that could not be reconciled.
type Failure struct {
	UserID     string `json:"userId"`
	LocationID string `json:"locationId"`
	Date       string `json:"date"`
	Error      string `json:"error"`
}

// NewOutcome converts a reconcile outcome.
func NewOutcome(o workday.Outcome, loc *time.Location) Outcome {
	out := Outcome{
		UserID:     o.Key.UserID,
		LocationID: o.Key.LocationID,
		Date:       o.Key.Date.String(),
		Action:     string(o.Action),
		WorkDay:    NewWorkDay(o.WorkDay, loc),
	}
	for _, a := range o.Anomalies {
		at := a.At
		out.Anomalies = append(out.Anomalies, Anomaly{
			Kind:    string(a.Kind),
			EntryID: a.PunchID,
			At:      *FormatMillis(&at, loc),
		})
	}
	return out
}

// NewFailure converts a reconcile failure. The message is generic; the
// cause is logged server side.
func NewFailure(f workday.Failure) Failure {
	return Failure{
		UserID:     f.Key.UserID,
		LocationID: f.Key.LocationID,
		Date:       f.Key.Date.String(),
		Error:      "work day could not be reconciled",
	}
}

// Report is the response of a reconcile trigger.
type Report struct {
	Reconciled []Outcome `json:"reconciled"`
	Failed     []Failure `json:"failed"`
}

// NewReport converts a batch report.
func NewReport(r workday.BatchReport, loc *time.Location) Report {
	out := Report{
		Reconciled: make([]Outcome, 0, len(r.Succeeded)),
		Failed:     make([]Failure, 0, len(r.Failed)),
	}
	for _, o := range r.Succeeded {
		out.Reconciled = append(out.Reconciled, NewOutcome(o, loc))
	}
	for _, f := range r.Failed {
		out.Failed = append(out.Failed, NewFailure(f))
	}
	return out
}
