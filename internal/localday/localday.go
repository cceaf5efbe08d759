// Package localday maps instants to civil dates in a named IANA timezone and
// back to half-open UTC ranges.
package localday

import (
	"fmt"
	"time"
)

// DateLayout is the wire and storage format of a Date.
const DateLayout = "2006-01-02"

// Date is a civil calendar date without a timezone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate normalizes out-of-range components the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// MustParseDate is ParseDate for constants and tests.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// AddDays returns d shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return NewDate(d.Year, d.Month, d.Day+n)
}

// Before reports whether d is earlier than other.
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

// After reports whether d is later than other.
func (d Date) After(other Date) bool {
	return other.Before(d)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateOf returns the civil date of t as observed in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	lt := t.In(loc)
	return Date{Year: lt.Year(), Month: lt.Month(), Day: lt.Day()}
}

// Range returns the half-open UTC interval [start, end) of instants whose
// local date in loc is d. The interval is 23 or 25 hours long across DST
// transitions, and starts after midnight in zones whose clocks skip it.
func Range(d Date, loc *time.Location) (start, end time.Time) {
	return startOf(d, loc).UTC(), startOf(d.AddDays(1), loc).UTC()
}

// startOf finds the first instant whose local date in loc is d.
func startOf(d Date, loc *time.Location) time.Time {
	c := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)

	// time.Date resolves a skipped wall-clock midnight to an instant that
	// may fall on either side of the gap.
	if DateOf(c, loc).Before(d) {
		_, zoneEnd := c.ZoneBounds()
		return zoneEnd
	}

	if lt := c.In(loc); lt.Hour() != 0 || lt.Minute() != 0 || lt.Second() != 0 {
		zoneStart, _ := c.ZoneBounds()
		if DateOf(zoneStart, loc) == d && DateOf(zoneStart.Add(-time.Nanosecond), loc).Before(d) {
			return zoneStart
		}
	}

	return c
}

// Contains reports whether t falls within the local day d in loc.
func Contains(d Date, loc *time.Location, t time.Time) bool {
	start, end := Range(d, loc)
	return !t.Before(start) && t.Before(end)
}

// RangeMillis is Range expressed as Unix milliseconds, the storage unit of
// entry timestamps.
func RangeMillis(d Date, loc *time.Location) (startMs, endMs int64) {
	start, end := Range(d, loc)
	return start.UnixMilli(), end.UnixMilli()
}

// Dates returns every date from first to last inclusive.
func Dates(first, last Date) []Date {
	var out []Date
	for d := first; !d.After(last); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out
}
