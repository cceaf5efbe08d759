package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/geoclock/timekeeper/internal/api/v2/dto"
	"github.com/geoclock/timekeeper/internal/datastore/repository"
	"github.com/geoclock/timekeeper/internal/ledger"
)

// initEntryRoutes registers the entry endpoints. Every mutation goes
// through the correction ledger.
func (c *Controller) initEntryRoutes() {
	entryGroup := c.Group.Group("/entries", c.AuthMiddleware)
	entryGroup.GET("", c.ListEntries)
	entryGroup.POST("", c.CreateEntry)
	entryGroup.POST("/shift", c.ShiftEntries)
	entryGroup.POST("/delete", c.DeleteEntries)
	entryGroup.PATCH("/:id", c.EditEntry)
	entryGroup.GET("/:id/corrections", c.GetEntryCorrections)
}

// ListEntries handles GET /api/v2/entries
func (c *Controller) ListEntries(ctx echo.Context) error {
	oc := orgContext(ctx)
	q, err := bindQuery(ctx)
	if err != nil {
		return c.handleServiceError(ctx, err, nil)
	}
	userID, err := scopeUser(oc, q.UserID)
	if err != nil {
		return c.handleServiceError(ctx, err, nil)
	}
	fromMs, toMs, err := q.millis(oc.Timezone)
	if err != nil {
		return c.handleServiceError(ctx, err, nil)
	}

	filter := repository.EntryFilter{
		OrgID:      oc.OrgID,
		UserID:     userID,
		LocationID: q.LocationID,
		FromMs:     fromMs,
		ToMs:       toMs,
		Limit:      q.Limit,
		Offset:     q.Offset,
	}
	list, total, err := c.repos.Entries.List(ctx.Request().Context(), filter)
	if err != nil {
		return c.handleServiceError(ctx, c.storageError(err, "list entries"), nil)
	}

	return ctx.JSON(http.StatusOK, dto.Page[*dto.Entry]{
		Items:  dto.NewEntries(list, oc.Timezone),
		Total:  total,
		Limit:  effectiveLimit(q.Limit),
		Offset: q.Offset,
	})
}

// CreateEntry handles POST /api/v2/entries
func (c *Controller) CreateEntry(ctx echo.Context) error {
	var req ledger.CreateRequest
	if err := bind(ctx, &req); err != nil {
		return c.handleServiceError(ctx, err, nil)
	}
	oc := orgContext(ctx)
	res, err := c.ledger.Create(ctx.Request().Context(), oc, req)
	return c.respondResult(ctx, oc, res, err, http.StatusCreated)
}

// EditEntry handles PATCH /api/v2/entries/:id
func (c *Controller) EditEntry(ctx echo.Context) error {
	var req ledger.EditRequest
	if err := bind(ctx, &req); err != nil {
		return c.handleServiceError(ctx, err, nil)
	}
	req.EntryID = ctx.Param("id")
	oc := orgContext(ctx)
	res, err := c.ledger.Edit(ctx.Request().Context(), oc, req)
	return c.respondResult(ctx, oc, res, err, http.StatusOK)
}

// ShiftEntries handles POST /api/v2/entries/shift
func (c *Controller) ShiftEntries(ctx echo.Context) error {
	var req ledger.ShiftRequest
	if err := bind(ctx, &req); err != nil {
		return c.handleServiceError(ctx, err, nil)
	}
	oc := orgContext(ctx)
	res, err := c.ledger.BulkShift(ctx.Request().Context(), oc, req)
	return c.respondResult(ctx, oc, res, err, http.StatusOK)
}

// DeleteEntries handles POST /api/v2/entries/delete
func (c *Controller) DeleteEntries(ctx echo.Context) error {
	var req ledger.DeleteRequest
	if err := bind(ctx, &req); err != nil {
		return c.handleServiceError(ctx, err, nil)
	}
	oc := orgContext(ctx)
	res, err := c.ledger.Delete(ctx.Request().Context(), oc, req)
	return c.respondResult(ctx, oc, res, err, http.StatusOK)
}

// respondResult writes a ledger result. A failed operation still returns
// its partial result. A replayed create answers 200 instead of success.
func (c *Controller) respondResult(ctx echo.Context, oc ledger.OrgContext, res *ledger.Result, err error, success int) error {
	body := dto.NewResult(res, oc.Timezone)
	if err != nil {
		if body == nil {
			return c.handleServiceError(ctx, err, nil)
		}
		return c.handleServiceError(ctx, err, body)
	}
	code := success
	if len(res.Applied) == 0 {
		code = http.StatusOK
	}
	return ctx.JSON(code, body)
}

func effectiveLimit(limit int) int {
	switch {
	case limit <= 0:
		return repository.DefaultLimit
	case limit > repository.MaxLimit:
		return repository.MaxLimit
	default:
		return limit
	}
}
