// Package dto contains data transfer objects for API v2 responses.
// Instants are rendered as RFC 3339 in the request's zone; the raw Unix
// milliseconds travel alongside.
package dto

import (
	"time"

	"github.com/geoclock/timekeeper/internal/datastore/entities"
	"github.com/geoclock/timekeeper/internal/localday"
)

// Entry is the API representation of a clock event.
type Entry struct {
	ID              string   `json:"id"`
	UserID          string   `json:"userId"`
	LocationID      string   `json:"locationId"`
	Type            string   `json:"type"`
	Timestamp       string   `json:"timestamp"`
	TimestampMs     int64    `json:"timestampMs"`
	LocalDate       string   `json:"localDate"`
	ClientTimestamp *string  `json:"clientTimestamp,omitempty"`
	Latitude        *float64 `json:"latitude,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty"`
	Accuracy        *float64 `json:"accuracy,omitempty"`
	Notes           *string  `json:"notes,omitempty"`
	WorkDayID       *string  `json:"workDayId,omitempty"`
}

// NewEntry converts an entity. loc defaults to UTC.
func NewEntry(e *entities.Entry, loc *time.Location) *Entry {
	if e == nil {
		return nil
	}
	loc = orUTC(loc)
	at := time.UnixMilli(e.TimestampServer).In(loc)
	return &Entry{
		ID:              e.ID,
		UserID:          e.UserID,
		LocationID:      e.LocationID,
		Type:            string(e.Type),
		Timestamp:       at.Format(time.RFC3339),
		TimestampMs:     e.TimestampServer,
		LocalDate:       localday.DateOf(at, loc).String(),
		ClientTimestamp: FormatMillis(e.TimestampClient, loc),
		Latitude:        e.Latitude,
		Longitude:       e.Longitude,
		Accuracy:        e.Accuracy,
		Notes:           e.Notes,
		WorkDayID:       e.WorkDayID,
	}
}

// NewEntries converts a slice, keeping order.
func NewEntries(list []*entities.Entry, loc *time.Location) []*Entry {
	out := make([]*Entry, 0, len(list))
	for _, e := range list {
		out = append(out, NewEntry(e, loc))
	}
	return out
}

// FormatMillis renders optional Unix milliseconds, nil stays nil.
func FormatMillis(ms *int64, loc *time.Location) *string {
	if ms == nil {
		return nil
	}
	s := time.UnixMilli(*ms).In(orUTC(loc)).Format(time.RFC3339)
	return &s
}

func orUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

// Page wraps a list response.
type Page[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}
