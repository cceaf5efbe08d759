package api

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/geoclock/timekeeper/internal/errors"
	"github.com/geoclock/timekeeper/internal/ledger"
	"github.com/geoclock/timekeeper/internal/localday"
	"github.com/geoclock/timekeeper/internal/validation"
)

// RequestValidator adapts the shared validator to echo. Types with their
// own Validate method use it.
type RequestValidator struct{}

// Validate implements echo.Validator.
func (RequestValidator) Validate(i any) error {
	if v, ok := i.(interface{ Validate() error }); ok {
		return v.Validate()
	}
	return validation.Struct(i)
}

// bind decodes the request into dst. Decoding failures are validation
// errors on the body.
func bind(ctx echo.Context, dst any) error {
	if err := ctx.Bind(dst); err != nil {
		msg := "malformed request body"
		if he, ok := err.(*echo.HTTPError); ok {
			if s, ok := he.Message.(string); ok && s != "" {
				msg = s
			}
		}
		return errors.ValidationError("body", msg)
	}
	return nil
}

// listQuery is the shared query string of the list endpoints. From and To
// are inclusive local dates.
type listQuery struct {
	UserID     string `query:"userId" json:"userId" validate:"omitempty,max=36"`
	LocationID string `query:"locationId" json:"locationId" validate:"omitempty,max=36"`
	From       string `query:"from" json:"from"`
	To         string `query:"to" json:"to"`
	Limit      int    `query:"limit" json:"limit" validate:"omitempty,min=1,max=1000"`
	Offset     int    `query:"offset" json:"offset" validate:"omitempty,min=0"`
}

func bindQuery(ctx echo.Context) (listQuery, error) {
	var q listQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(ctx, &q); err != nil {
		return q, errors.ValidationError("query", "malformed query parameters")
	}
	if err := ctx.Validate(&q); err != nil {
		return q, err
	}
	return q, nil
}

// dates parses the optional inclusive date bounds.
func (q listQuery) dates() (from, to localday.Date, err error) {
	if strings.TrimSpace(q.From) != "" {
		if from, err = localday.ParseDate(q.From); err != nil {
			return from, to, errors.ValidationError("from", "must be a YYYY-MM-DD date")
		}
	}
	if strings.TrimSpace(q.To) != "" {
		if to, err = localday.ParseDate(q.To); err != nil {
			return from, to, errors.ValidationError("to", "must be a YYYY-MM-DD date")
		}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return from, to, errors.ValidationError("to", "must not be before from")
	}
	return from, to, nil
}

// millis converts the date bounds into a half-open millisecond range in
// loc. Zero means unbounded.
func (q listQuery) millis(loc *time.Location) (fromMs, toMs int64, err error) {
	from, to, err := q.dates()
	if err != nil {
		return 0, 0, err
	}
	if !from.IsZero() {
		fromMs, _ = localday.RangeMillis(from, loc)
	}
	if !to.IsZero() {
		_, toMs = localday.RangeMillis(to, loc)
	}
	return fromMs, toMs, nil
}

// scopeUser decides whose rows a caller may read. Members read their own;
// administrators read anyone's, or everyone's when requested is empty.
func scopeUser(oc ledger.OrgContext, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if oc.Role.IsAdmin() {
		return requested, nil
	}
	if requested == "" || requested == oc.ActorID {
		return oc.ActorID, nil
	}
	return "", errors.ForbiddenError("members may only read their own records")
}
