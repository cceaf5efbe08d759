// Package pairing turns the clock events of one local day into worked and
// break durations.
//
// The scan keeps one open CLOCK_IN and one open BREAK_START. A second opener
// replaces the first (last wins); a closer without an opener adds nothing.
// Neither case is an error: both are reported as Anomalies so that operators
// can find and correct the underlying entries.
package pairing

import (
	"cmp"
	"slices"

	"github.com/geoclock/timekeeper/internal/model"
)

// Punch is a single clock event. At is Unix milliseconds.
type Punch struct {
	ID   string
	Type model.EntryType
	At   int64
}

// AnomalyKind classifies a data-quality finding.
type AnomalyKind string

const (
	UnmatchedClockOut     AnomalyKind = "unmatched_clock_out"
	UnmatchedBreakEnd     AnomalyKind = "unmatched_break_end"
	OverwrittenClockIn    AnomalyKind = "overwritten_clock_in"
	OverwrittenBreakStart AnomalyKind = "overwritten_break_start"
	OpenClockIn           AnomalyKind = "open_clock_in"
	OpenBreakStart        AnomalyKind = "open_break_start"
)

// Anomaly points at the punch that could not be paired.
type Anomaly struct {
	Kind    AnomalyKind
	PunchID string
	At      int64
}

// Result holds the raw sums of a pairing scan.
type Result struct {
	WorkedMs     int64
	BreakMs      int64
	FirstClockIn *int64
	LastClockOut *int64
	Anomalies    []Anomaly
}

// Totals are the policy-facing figures stored on a WorkDay.
type Totals struct {
	TotalMinutes int
	BreakMinutes int
	MeetsPolicy  bool
}

const msPerMinute = 60_000

// Pair scans punches in (At, type rank, ID) order. The input slice is not
// modified.
func Pair(punches []Punch) Result {
	sorted := slices.Clone(punches)
	slices.SortStableFunc(sorted, func(a, b Punch) int {
		if c := cmp.Compare(a.At, b.At); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Type.Rank(), b.Type.Rank()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	var (
		res       Result
		openIn    *Punch
		openBreak *Punch
		firstIn   int64
		lastOut   int64
		seenIn    bool
		seenOut   bool
	)

	for i := range sorted {
		p := &sorted[i]
		switch p.Type {
		case model.EntryClockIn:
			if openIn != nil {
				res.Anomalies = append(res.Anomalies, Anomaly{Kind: OverwrittenClockIn, PunchID: openIn.ID, At: openIn.At})
			}
			openIn = p
			if !seenIn || p.At < firstIn {
				firstIn = p.At
				seenIn = true
			}

		case model.EntryClockOut:
			if openIn != nil {
				res.WorkedMs += p.At - openIn.At
				openIn = nil
			} else {
				res.Anomalies = append(res.Anomalies, Anomaly{Kind: UnmatchedClockOut, PunchID: p.ID, At: p.At})
			}
			if !seenOut || p.At > lastOut {
				lastOut = p.At
				seenOut = true
			}

		case model.EntryBreakStart:
			if openBreak != nil {
				res.Anomalies = append(res.Anomalies, Anomaly{Kind: OverwrittenBreakStart, PunchID: openBreak.ID, At: openBreak.At})
			}
			openBreak = p

		case model.EntryBreakEnd:
			if openBreak != nil {
				res.BreakMs += p.At - openBreak.At
				openBreak = nil
			} else {
				res.Anomalies = append(res.Anomalies, Anomaly{Kind: UnmatchedBreakEnd, PunchID: p.ID, At: p.At})
			}
		}
	}

	if openIn != nil {
		res.Anomalies = append(res.Anomalies, Anomaly{Kind: OpenClockIn, PunchID: openIn.ID, At: openIn.At})
	}
	if openBreak != nil {
		res.Anomalies = append(res.Anomalies, Anomaly{Kind: OpenBreakStart, PunchID: openBreak.ID, At: openBreak.At})
	}

	if seenIn {
		res.FirstClockIn = &firstIn
	}
	if seenOut {
		res.LastClockOut = &lastOut
	}

	return res
}

// Totals converts the sums to whole minutes. Net time never goes below zero
// and minutes are floored. MeetsPolicy compares net minutes to
// minimumMinutes; a non-positive minimum uses the default policy.
func (r Result) Totals(minimumMinutes int) Totals {
	if minimumMinutes <= 0 {
		minimumMinutes = model.DefaultDailyMinimumMinutes
	}

	net := max(r.WorkedMs-r.BreakMs, 0)
	total := int(net / msPerMinute)

	return Totals{
		TotalMinutes: total,
		BreakMinutes: int(max(r.BreakMs, 0) / msPerMinute),
		MeetsPolicy:  total >= minimumMinutes,
	}
}

// CountByKind tallies anomalies for metrics.
func (r Result) CountByKind() map[AnomalyKind]int {
	if len(r.Anomalies) == 0 {
		return nil
	}
	out := make(map[AnomalyKind]int, len(r.Anomalies))
	for _, a := range r.Anomalies {
		out[a.Kind]++
	}
	return out
}
