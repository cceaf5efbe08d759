package workday

import (
	"fmt"
	"time"

	"github.com/geoclock/timekeeper/internal/errors"
	"github.com/geoclock/timekeeper/internal/localday"
)

// RowKey identifies one work_days row.
type RowKey struct {
	UserID     string
	LocationID string
	Date       localday.Date
}

func (k RowKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.UserID, k.LocationID, k.Date)
}

// Key is a reconcile request: the row identity plus the zone that defines
// its local day. MinimumMinutes of 0 uses the aggregator default.
type Key struct {
	OrgID          string
	UserID         string
	LocationID     string
	Date           localday.Date
	Timezone       *time.Location
	MinimumMinutes int
}

// KeyAt returns the key of the local day containing the instant atMs.
func KeyAt(orgID, userID, locationID string, atMs int64, tz *time.Location) Key {
	if tz == nil {
		tz = time.UTC
	}
	return Key{
		OrgID:      orgID,
		UserID:     userID,
		LocationID: locationID,
		Date:       localday.DateOf(time.UnixMilli(atMs), tz),
		Timezone:   tz,
	}
}

// Row returns the row identity of the key.
func (k Key) Row() RowKey {
	return RowKey{UserID: k.UserID, LocationID: k.LocationID, Date: k.Date}
}

func (k Key) String() string {
	return k.Row().String()
}

func (k Key) zone() *time.Location {
	if k.Timezone == nil {
		return time.UTC
	}
	return k.Timezone
}

// Validate checks that every identity field is present.
func (k Key) Validate() error {
	switch {
	case k.UserID == "":
		return errors.ValidationError("userId", "is required")
	case k.LocationID == "":
		return errors.ValidationError("locationId", "is required")
	case k.Date.IsZero():
		return errors.ValidationError("date", "is required")
	}
	return nil
}

// KeySet is an insertion-ordered set of keys, deduplicated by row.
// The zero value is ready to use.
type KeySet struct {
	keys []Key
	seen map[RowKey]struct{}
}

// NewKeySet returns a set holding keys.
func NewKeySet(keys ...Key) KeySet {
	var s KeySet
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

// Add inserts k unless its row is already present and reports whether it
// was added.
func (s *KeySet) Add(k Key) bool {
	if s.seen == nil {
		s.seen = make(map[RowKey]struct{})
	}
	row := k.Row()
	if _, ok := s.seen[row]; ok {
		return false
	}
	s.seen[row] = struct{}{}
	s.keys = append(s.keys, k)
	return true
}

// Merge adds every key of other.
func (s *KeySet) Merge(other KeySet) {
	for _, k := range other.keys {
		s.Add(k)
	}
}

// Contains reports whether the row is in the set.
func (s KeySet) Contains(row RowKey) bool {
	_, ok := s.seen[row]
	return ok
}

// Len returns the number of distinct rows.
func (s KeySet) Len() int {
	return len(s.keys)
}

// Keys returns a copy of the keys in insertion order.
func (s KeySet) Keys() []Key {
	out := make([]Key, len(s.keys))
	copy(out, s.keys)
	return out
}
