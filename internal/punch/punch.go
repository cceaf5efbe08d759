// Package punch records employee clock actions. The server stamps the
// authoritative time; the client's time and position are kept as evidence.
package punch

import (
	"context"
	"strings"
	"time"

	"github.com/geoclock/timekeeper/internal/audit"
	"github.com/geoclock/timekeeper/internal/datastore/entities"
	"github.com/geoclock/timekeeper/internal/datastore/repository"
	"github.com/geoclock/timekeeper/internal/errors"
	"github.com/geoclock/timekeeper/internal/ledger"
	"github.com/geoclock/timekeeper/internal/logger"
	"github.com/geoclock/timekeeper/internal/model"
	"github.com/geoclock/timekeeper/internal/validation"
	"github.com/geoclock/timekeeper/internal/workday"
)

// ClockRequest is one clock action by the acting member.
type ClockRequest struct {
	LocationID      string          `json:"locationId" validate:"required,max=36"`
	Type            model.EntryType `json:"type" validate:"required,entrytype"`
	ClientTimestamp *time.Time      `json:"clientTimestamp,omitempty"`
	Latitude        *float64        `json:"latitude,omitempty" validate:"omitempty,min=-90,max=90"`
	Longitude       *float64        `json:"longitude,omitempty" validate:"omitempty,min=-180,max=180"`
	Accuracy        *float64        `json:"accuracy,omitempty" validate:"omitempty,min=0"`
	Notes           *string         `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// Validate checks the request fields.
func (r *ClockRequest) Validate() error {
	if err := validation.Struct(r); err != nil {
		return err
	}
	if (r.Latitude == nil) != (r.Longitude == nil) {
		return errors.ValidationError("latitude", "latitude and longitude must be sent together")
	}
	return nil
}

// Result is the stored entry and what happened to its work day. A failed
// reconcile does not undo the clock action.
type Result struct {
	Entry        *entities.Entry
	Outcome      *workday.Outcome
	ReconcileErr error
}

// Options configures a Service.
type Options struct {
	Logger logger.Logger
	Audit  audit.Sink
	// Now defaults to time.Now.
	Now func() time.Time
}

// Service stores clock actions.
type Service struct {
	repos      *repository.Repositories
	reconciler ledger.Reconciler
	log        logger.Logger
	audit      audit.Sink
	now        func() time.Time
}

// NewService creates a Service.
func NewService(repos *repository.Repositories, reconciler ledger.Reconciler, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logger.Global().Module("punch")
	}
	if opts.Audit == nil {
		opts.Audit = audit.Discard
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		repos:      repos,
		reconciler: reconciler,
		log:        opts.Logger,
		audit:      opts.Audit,
		now:        opts.Now,
	}
}

// Clock stores a clock action for oc.ActorID and reconciles its day.
func (s *Service) Clock(ctx context.Context, oc ledger.OrgContext, req ClockRequest) (*Result, error) {
	if oc.OrgID == "" || oc.ActorID == "" {
		return nil, errors.ForbiddenError("organization context is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.repos.Directory.GetMember(ctx, oc.OrgID, oc.ActorID); err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return nil, errors.ForbiddenError("not a member of this organization")
		}
		return nil, s.storageError(err, "load member")
	}
	if _, err := s.repos.Directory.GetLocation(ctx, oc.OrgID, req.LocationID); err != nil {
		if errors.Is(err, repository.ErrLocationNotFound) {
			return nil, errors.NotFoundError("location", req.LocationID)
		}
		return nil, s.storageError(err, "load location")
	}

	entry := &entities.Entry{
		OrgID:           oc.OrgID,
		UserID:          oc.ActorID,
		LocationID:      req.LocationID,
		Type:            req.Type,
		TimestampServer: s.now().UnixMilli(),
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
		Accuracy:        req.Accuracy,
	}
	if req.ClientTimestamp != nil {
		ms := req.ClientTimestamp.UnixMilli()
		entry.TimestampClient = &ms
	}
	if req.Notes != nil {
		if n := strings.TrimSpace(*req.Notes); n != "" {
			entry.Notes = &n
		}
	}

	if err := s.repos.Entries.Create(ctx, entry); err != nil {
		return nil, s.storageError(err, "create entry")
	}

	result := &Result{Entry: entry}
	key := workday.KeyAt(oc.OrgID, oc.ActorID, req.LocationID, entry.TimestampServer, oc.Timezone)
	key.MinimumMinutes = oc.MinimumMinutes

	report := s.reconciler.ReconcileKeys(ctx, workday.NewKeySet(key))
	if len(report.Succeeded) > 0 {
		result.Outcome = &report.Succeeded[0]
	}
	if err := report.Err(); err != nil {
		result.ReconcileErr = err
		s.log.Warn("reconcile after clock action failed",
			logger.String("entry_id", entry.ID),
			logger.Error(err))
	}

	s.log.Info("clock action recorded",
		logger.String("entry_id", entry.ID),
		logger.String("user_id", entry.UserID),
		logger.String("location_id", entry.LocationID),
		logger.String("type", string(entry.Type)))

	s.audit.Record(ctx, audit.Event{
		OrgID:      oc.OrgID,
		ActorID:    oc.ActorID,
		Action:     "entry.clock",
		EntityType: "entry",
		EntityID:   entry.ID,
		Details: map[string]any{
			"type":       string(entry.Type),
			"locationId": entry.LocationID,
			"timestamp":  entry.TimestampServer,
		},
	})

	return result, nil
}

func (s *Service) storageError(err error, operation string) error {
	return errors.New(err).
		Component("punch").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}
