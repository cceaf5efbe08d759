package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/geoclock/timekeeper/internal/api/v2/dto"
	"github.com/geoclock/timekeeper/internal/datastore/repository"
	"github.com/geoclock/timekeeper/internal/errors"
	"github.com/geoclock/timekeeper/internal/export"
	"github.com/geoclock/timekeeper/internal/ledger"
	"github.com/geoclock/timekeeper/internal/localday"
	"github.com/geoclock/timekeeper/internal/logger"
	"github.com/geoclock/timekeeper/internal/workday"
)

// maxReconcileDays bounds one reconcile trigger.
const maxReconcileDays = 366

func (c *Controller) initWorkDayRoutes() {
	workDayGroup := c.Group.Group("/workdays", c.AuthMiddleware)
	workDayGroup.GET("", c.ListWorkDays)
	workDayGroup.GET("/export", c.ExportWorkDays)
	workDayGroup.POST("/reconcile", c.ReconcileWorkDays)
}

// ListWorkDays handles GET /api/v2/workdays
func (c *Controller) ListWorkDays(ctx echo.Context) error {
	oc := orgContext(ctx)
	filter, q, err := c.workDayFilter(ctx, oc)
	if err != nil {
		return c.handleServiceError(ctx, err, nil)
	}

	list, total, err := c.repos.WorkDays.List(ctx.Request().Context(), filter)
	if err != nil {
		return c.handleServiceError(ctx, c.storageError(err, "list work days"), nil)
	}

	return ctx.JSON(http.StatusOK, dto.Page[*dto.WorkDay]{
		Items:  dto.NewWorkDays(list, oc.Timezone),
		Total:  total,
		Limit:  effectiveLimit(q.Limit),
		Offset: q.Offset,
	})
}

func (c *Controller) workDayFilter(ctx echo.Context, oc ledger.OrgContext) (repository.WorkDayFilter, listQuery, error) {
	q, err := bindQuery(ctx)
	if err != nil {
		return repository.WorkDayFilter{}, q, err
	}
	userID, err := scopeUser(oc, q.UserID)
	if err != nil {
		return repository.WorkDayFilter{}, q, err
	}
	from, to, err := q.dates()
	if err != nil {
		return repository.WorkDayFilter{}, q, err
	}
	filter := repository.WorkDayFilter{
		OrgID:      oc.OrgID,
		UserID:     userID,
		LocationID: q.LocationID,
		Limit:      q.Limit,
		Offset:     q.Offset,
	}
	if !from.IsZero() {
		filter.From = from.String()
	}
	if !to.IsZero() {
		filter.To = to.String()
	}
	return filter, q, nil
}

// ExportWorkDays handles GET /api/v2/workdays/export?format=xlsx|csv
func (c *Controller) ExportWorkDays(ctx echo.Context) error {
	oc := orgContext(ctx)
	format := strings.ToLower(strings.TrimSpace(ctx.QueryParam("format")))
	mime, ext, err := export.ContentType(format)
	if err != nil {
		return c.handleServiceError(ctx, errors.ValidationError("format", "must be xlsx or csv"), nil)
	}

	filter, _, err := c.workDayFilter(ctx, oc)
	if err != nil {
		return c.handleServiceError(ctx, err, nil)
	}

	reqCtx := ctx.Request().Context()
	days, err := repository.AllWorkDays(reqCtx, c.repos.WorkDays, filter)
	if err != nil {
		return c.handleServiceError(ctx, c.storageError(err, "export work days"), nil)
	}
	locations, err := c.repos.Directory.ListLocations(reqCtx, oc.OrgID)
	if err != nil {
		return c.handleServiceError(ctx, c.storageError(err, "list locations"), nil)
	}
	names := make(map[string]string, len(locations))
	for _, l := range locations {
		names[l.ID] = l.Name
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, ext, days, export.Options{Timezone: oc.Timezone, LocationNames: names}); err != nil {
		return c.handleServiceError(ctx, errors.New(err).
			Component("api").
			Category(errors.CategoryFileIO).
			Context("operation", "export").
			Build(), nil)
	}

	filename := fmt.Sprintf("workdays_%s.%s", time.Now().In(oc.Timezone).Format("20060102"), ext)
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, mime, buf.Bytes())
}

// ReconcileRequest triggers a recompute of one work day, or of every day
// from Date through ToDate.
type ReconcileRequest struct {
	UserID     string `json:"userId" validate:"required,max=36"`
	LocationID string `json:"locationId" validate:"required,max=36"`
	Date       string `json:"date" validate:"required"`
	ToDate     string `json:"toDate,omitempty"`
	// Timezone overrides the request zone.
	Timezone string `json:"timezone,omitempty" validate:"omitempty,iana"`
}

// ReconcileWorkDays handles POST /api/v2/workdays/reconcile
func (c *Controller) ReconcileWorkDays(ctx echo.Context) error {
	oc := orgContext(ctx)
	if !oc.Role.IsAdmin() {
		return c.handleServiceError(ctx, errors.ForbiddenError("administrator role required"), nil)
	}

	var req ReconcileRequest
	if err := bind(ctx, &req); err != nil {
		return c.handleServiceError(ctx, err, nil)
	}
	if err := ctx.Validate(&req); err != nil {
		return c.handleServiceError(ctx, err, nil)
	}

	from, err := localday.ParseDate(req.Date)
	if err != nil {
		return c.handleServiceError(ctx, errors.ValidationError("date", "must be a YYYY-MM-DD date"), nil)
	}
	to := from
	if req.ToDate != "" {
		if to, err = localday.ParseDate(req.ToDate); err != nil {
			return c.handleServiceError(ctx, errors.ValidationError("toDate", "must be a YYYY-MM-DD date"), nil)
		}
		if to.Before(from) {
			return c.handleServiceError(ctx, errors.ValidationError("toDate", "must not be before date"), nil)
		}
		if len(localday.Dates(from, to)) > maxReconcileDays {
			return c.handleServiceError(ctx, errors.ValidationError("toDate",
				fmt.Sprintf("must be within %d days of date", maxReconcileDays)), nil)
		}
	}

	zone := oc.Timezone
	if req.Timezone != "" {
		if zone, err = c.zones.Load(req.Timezone); err != nil {
			return c.handleServiceError(ctx, err, nil)
		}
	}

	reqCtx := ctx.Request().Context()
	if _, err := c.repos.Directory.GetMember(reqCtx, oc.OrgID, req.UserID); err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return c.handleServiceError(ctx, errors.NotFoundError("user", req.UserID), nil)
		}
		return c.handleServiceError(ctx, c.storageError(err, "load member"), nil)
	}
	if _, err := c.repos.Directory.GetLocation(reqCtx, oc.OrgID, req.LocationID); err != nil {
		if errors.Is(err, repository.ErrLocationNotFound) {
			return c.handleServiceError(ctx, errors.NotFoundError("location", req.LocationID), nil)
		}
		return c.handleServiceError(ctx, c.storageError(err, "load location"), nil)
	}

	base := workday.Key{
		OrgID:          oc.OrgID,
		UserID:         req.UserID,
		LocationID:     req.LocationID,
		Timezone:       zone,
		MinimumMinutes: oc.MinimumMinutes,
	}
	report := c.aggregator.ReconcileRange(reqCtx, base, from, to)
	body := dto.NewReport(report, zone)

	c.logger.Info("reconcile triggered",
		logger.String("actor_id", oc.ActorID),
		logger.String("user_id", req.UserID),
		logger.String("location_id", req.LocationID),
		logger.String("from", from.String()),
		logger.String("to", to.String()),
		logger.Int("failed", len(report.Failed)))

	if err := report.Err(); err != nil {
		return c.handleServiceError(ctx, err, body)
	}
	return ctx.JSON(http.StatusOK, body)
}
