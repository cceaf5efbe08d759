package ledger

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/geoclock/timekeeper/internal/errors"
	"github.com/geoclock/timekeeper/internal/model"
	"github.com/geoclock/timekeeper/internal/validation"
)

// Limits for bulk requests.
const (
	MaxBulkEntries  = 500
	MaxShiftMinutes = 7 * 24 * 60
)

// Request is one of CreateRequest, EditRequest, ShiftRequest or
// DeleteRequest.
type Request interface {
	Kind() model.CorrectionKind
	Validate() error
	base() *Base
}

// Base carries the fields every correction request shares. OperationID is
// the idempotency key: a retry with the same value skips the entries the
// first attempt already handled. It is generated when empty.
type Base struct {
	OperationID string `json:"operationId,omitempty" validate:"omitempty,max=36"`
	Reason      string `json:"reason" validate:"required,notblank,max=1000"`
}

func (b *Base) base() *Base { return b }

func (b *Base) reason() string {
	return strings.TrimSpace(b.Reason)
}

// CreateRequest adds an entry on behalf of a member.
type CreateRequest struct {
	Base
	UserID     string          `json:"userId" validate:"required,max=36"`
	LocationID string          `json:"locationId" validate:"required,max=36"`
	Type       model.EntryType `json:"type" validate:"required,entrytype"`
	Timestamp  time.Time       `json:"timestamp"`
	Notes      *string         `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// Kind implements Request.
func (*CreateRequest) Kind() model.CorrectionKind { return model.CorrectionCreate }

// Validate implements Request.
func (r *CreateRequest) Validate() error {
	if err := validation.Struct(r); err != nil {
		return err
	}
	if r.Timestamp.IsZero() {
		return errors.ValidationError("timestamp", "is required")
	}
	return nil
}

// EditRequest changes one entry. Nil fields keep their current value.
type EditRequest struct {
	Base
	EntryID    string           `json:"entryId" validate:"required,max=36"`
	Timestamp  *time.Time       `json:"timestamp,omitempty"`
	Type       *model.EntryType `json:"type,omitempty"`
	LocationID *string          `json:"locationId,omitempty" validate:"omitempty,max=36"`
	Notes      *string          `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// Kind implements Request.
func (*EditRequest) Kind() model.CorrectionKind { return model.CorrectionEdit }

// Validate implements Request.
func (r *EditRequest) Validate() error {
	if err := validation.Struct(r); err != nil {
		return err
	}
	switch {
	case r.Timestamp == nil && r.Type == nil && r.LocationID == nil && r.Notes == nil:
		return errors.ValidationError("timestamp", "at least one of timestamp, type, locationId or notes must change")
	case r.Timestamp != nil && r.Timestamp.IsZero():
		return errors.ValidationError("timestamp", "must not be zero")
	case r.Type != nil && !r.Type.Valid():
		return errors.ValidationError("type", "must be one of CLOCK_IN, CLOCK_OUT, BREAK_START, BREAK_END")
	case r.LocationID != nil && strings.TrimSpace(*r.LocationID) == "":
		return errors.ValidationError("locationId", "must not be blank")
	}
	return nil
}

// ShiftRequest moves entries by a whole number of minutes.
type ShiftRequest struct {
	Base
	EntryIDs     []string `json:"entryIds" validate:"required,min=1,max=500,unique,dive,required,max=36"`
	ShiftMinutes int      `json:"shiftMinutes" validate:"required,min=-10080,max=10080"`
}

// Kind implements Request.
func (*ShiftRequest) Kind() model.CorrectionKind { return model.CorrectionShift }

// Validate implements Request.
func (r *ShiftRequest) Validate() error {
	return validation.Struct(r)
}

// DeleteRequest removes entries, leaving a tombstone correction for each.
type DeleteRequest struct {
	Base
	EntryIDs []string `json:"entryIds" validate:"required,min=1,max=500,unique,dive,required,max=36"`
}

// Kind implements Request.
func (*DeleteRequest) Kind() model.CorrectionKind { return model.CorrectionDelete }

// Validate implements Request.
func (r *DeleteRequest) Validate() error {
	return validation.Struct(r)
}

// DecodeRequest reads a request whose "kind" field selects the variant.
func DecodeRequest(data []byte) (Request, error) {
	var envelope struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, decodeError(err)
	}

	var req Request
	switch model.CorrectionKind(strings.ToUpper(strings.TrimSpace(envelope.Kind))) {
	case model.CorrectionCreate:
		req = &CreateRequest{}
	case model.CorrectionEdit:
		req = &EditRequest{}
	case model.CorrectionShift:
		req = &ShiftRequest{}
	case model.CorrectionDelete:
		req = &DeleteRequest{}
	case "":
		return nil, errors.ValidationError("kind", "is required")
	default:
		return nil, errors.ValidationError("kind", "must be one of CREATE, EDIT, SHIFT, DELETE")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(req); err != nil {
		return nil, decodeError(err)
	}
	return req, nil
}

func decodeError(err error) error {
	field := "body"
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		field = typeErr.Field
	}
	return errors.New(err).
		Component("ledger").
		Category(errors.CategoryValidation).
		Context("field", field).
		Build()
}
