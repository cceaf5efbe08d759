package ledger

import (
	"time"

	"github.com/geoclock/timekeeper/internal/errors"
	"github.com/geoclock/timekeeper/internal/model"
	"github.com/geoclock/timekeeper/internal/workday"
)

// OrgContext identifies who is acting, in which organization, and which
// zone defines local days for the call. It is built at the API boundary
// and passed explicitly into every operation.
type OrgContext struct {
	OrgID   string
	ActorID string
	Role    model.Role
	// Timezone defaults to UTC when nil.
	Timezone *time.Location
	// MinimumMinutes is the organization's daily minimum, 0 for the default.
	MinimumMinutes int
}

func (oc OrgContext) requireMember() error {
	if oc.OrgID == "" || oc.ActorID == "" {
		return errors.ForbiddenError("organization context is required")
	}
	return nil
}

func (oc OrgContext) requireAdmin() error {
	if err := oc.requireMember(); err != nil {
		return err
	}
	if !oc.Role.IsAdmin() {
		return errors.ForbiddenError("administrator role required")
	}
	return nil
}

func (oc OrgContext) zone() *time.Location {
	if oc.Timezone == nil {
		return time.UTC
	}
	return oc.Timezone
}

// keys applies the organization's zone and policy to AffectedKeys.
func (oc OrgContext) keys(old, updated *EntryState) workday.KeySet {
	var set workday.KeySet
	for _, k := range AffectedKeys(old, updated, oc.zone()).Keys() {
		k.MinimumMinutes = oc.MinimumMinutes
		set.Add(k)
	}
	return set
}
