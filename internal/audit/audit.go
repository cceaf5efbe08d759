// Package audit records privileged actions. Record never fails the caller:
// delivery problems are logged and counted, not returned.
package audit

import (
	"context"
	"time"

	"github.com/geoclock/timekeeper/internal/errors"
)

// Event is one audited action.
type Event struct {
	OrgID      string         `json:"orgId"`
	ActorID    string         `json:"actorId"`
	Action     string         `json:"action"`
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	At         time.Time      `json:"at"`
}

// Sink accepts audit events without reporting failure.
type Sink interface {
	Record(ctx context.Context, event Event)
}

// Backend delivers an event somewhere durable.
type Backend interface {
	Name() string
	Write(ctx context.Context, event Event) error
}

// Discard is a Sink that drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) Record(context.Context, Event) {}

// MultiSink writes to every backend and joins their errors.
type MultiSink []Backend

// Name implements Backend.
func (m MultiSink) Name() string {
	return "multi"
}

// Write implements Backend. A failing backend does not stop the others.
func (m MultiSink) Write(ctx context.Context, event Event) error {
	var errs []error
	for _, b := range m {
		if err := b.Write(ctx, event); err != nil {
			errs = append(errs, errors.New(err).
				Component("audit").
				Category(errors.CategoryAudit).
				Context("backend", b.Name()).
				Build())
		}
	}
	return errors.Join(errs...)
}
