// Package model holds the domain enumerations shared by the storage layer,
// the reconciliation engine and the API.
package model

import (
	"fmt"
	"strings"
)

// EntryType is the kind of clock action an entry records.
type EntryType string

const (
	EntryClockIn    EntryType = "CLOCK_IN"
	EntryClockOut   EntryType = "CLOCK_OUT"
	EntryBreakStart EntryType = "BREAK_START"
	EntryBreakEnd   EntryType = "BREAK_END"
)

// EntryTypes lists every valid entry type in pairing rank order: at the same
// instant closers sort before openers.
var EntryTypes = []EntryType{EntryBreakEnd, EntryClockOut, EntryClockIn, EntryBreakStart}

// Valid reports whether t is one of the known entry types.
func (t EntryType) Valid() bool {
	switch t {
	case EntryClockIn, EntryClockOut, EntryBreakStart, EntryBreakEnd:
		return true
	}
	return false
}

// Rank orders entry types that share the same instant so pairing is
// independent of storage order.
func (t EntryType) Rank() int {
	for i, et := range EntryTypes {
		if et == t {
			return i
		}
	}
	return len(EntryTypes)
}

// ParseEntryType parses a case-insensitive entry type name.
func ParseEntryType(s string) (EntryType, error) {
	t := EntryType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown entry type %q", s)
	}
	return t, nil
}

// CorrectionKind identifies which ledger operation produced a correction.
type CorrectionKind string

const (
	CorrectionCreate CorrectionKind = "CREATE"
	CorrectionEdit   CorrectionKind = "EDIT"
	CorrectionShift  CorrectionKind = "SHIFT"
	CorrectionDelete CorrectionKind = "DELETE"
)

// CorrectionStatus is the approval state of a correction. Corrections are
// approved by the acting administrator's own authority.
type CorrectionStatus string

const (
	CorrectionApproved CorrectionStatus = "APPROVED"
)

// DeletedReasonPrefix marks the reason of a deletion tombstone.
const DeletedReasonPrefix = "[DELETED] "

// Role is a member's role inside an organization.
type Role string

const (
	RoleOwner    Role = "OWNER"
	RoleAdmin    Role = "ADMIN"
	RoleEmployee Role = "EMPLOYEE"
)

// IsAdmin reports whether the role may correct other members' entries.
func (r Role) IsAdmin() bool {
	return r == RoleOwner || r == RoleAdmin
}

// DefaultDailyMinimumMinutes is the policy minimum used when neither the
// configuration nor the organization overrides it.
const DefaultDailyMinimumMinutes = 480
