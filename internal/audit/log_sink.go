package audit

import (
	"context"

	"github.com/geoclock/timekeeper/internal/logger"
)

// LogSink writes events to a structured logger at INFO.
type LogSink struct {
	log logger.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{log: log}
}

// Name implements Backend.
func (s *LogSink) Name() string {
	return "log"
}

// Write implements Backend.
func (s *LogSink) Write(ctx context.Context, event Event) error {
	s.log.WithContext(ctx).Info("audit",
		logger.String("org_id", event.OrgID),
		logger.String("actor_id", event.ActorID),
		logger.String("action", event.Action),
		logger.String("entity_type", event.EntityType),
		logger.String("entity_id", event.EntityID),
		logger.Any("details", event.Details),
		logger.Time("at", event.At))
	return nil
}
