package api

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/geoclock/timekeeper/internal/api/v2/dto"
	"github.com/geoclock/timekeeper/internal/errors"
	"github.com/geoclock/timekeeper/internal/ledger"
)

// maxCorrectionBody bounds the tagged union body.
const maxCorrectionBody = 1 << 20

func (c *Controller) initCorrectionRoutes() {
	correctionGroup := c.Group.Group("/corrections", c.AuthMiddleware)
	correctionGroup.POST("", c.ApplyCorrection)
}

// ApplyCorrection handles POST /api/v2/corrections. The body is one of the
// correction requests, selected by its "kind" field.
func (c *Controller) ApplyCorrection(ctx echo.Context) error {
	data, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxCorrectionBody+1))
	if err != nil {
		return c.handleServiceError(ctx, errors.ValidationError("body", "could not read request body"), nil)
	}
	if len(data) > maxCorrectionBody {
		return c.handleServiceError(ctx, errors.ValidationError("body", "request body too large"), nil)
	}

	req, err := ledger.DecodeRequest(data)
	if err != nil {
		return c.handleServiceError(ctx, err, nil)
	}

	oc := orgContext(ctx)
	res, err := c.ledger.Apply(ctx.Request().Context(), oc, req)
	success := http.StatusOK
	if _, ok := req.(*ledger.CreateRequest); ok {
		success = http.StatusCreated
	}
	return c.respondResult(ctx, oc, res, err, success)
}

// GetEntryCorrections handles GET /api/v2/entries/:id/corrections. The
// history of a deleted entry is still served from its tombstone.
func (c *Controller) GetEntryCorrections(ctx echo.Context) error {
	oc := orgContext(ctx)
	list, err := c.ledger.Corrections(ctx.Request().Context(), oc, ctx.Param("id"))
	if err != nil {
		return c.handleServiceError(ctx, err, nil)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"entryId":     ctx.Param("id"),
		"corrections": dto.NewCorrections(list, oc.Timezone),
	})
}
