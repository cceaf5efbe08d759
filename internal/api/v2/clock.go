package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/geoclock/timekeeper/internal/api/v2/dto"
	"github.com/geoclock/timekeeper/internal/punch"
)

func (c *Controller) initClockRoutes() {
	c.Group.POST("/clock", c.Clock, c.AuthMiddleware)
}

// ClockResponse is the answer to a clock action.
type ClockResponse struct {
	Entry *dto.Entry `json:"entry"`
	// Outcome is nil when the work day could not be reconciled.
	Outcome         *dto.Outcome `json:"outcome,omitempty"`
	ReconcileFailed bool         `json:"reconcileFailed"`
}

// Clock handles POST /api/v2/clock for the calling member.
func (c *Controller) Clock(ctx echo.Context) error {
	var req punch.ClockRequest
	if err := bind(ctx, &req); err != nil {
		return c.handleServiceError(ctx, err, nil)
	}

	oc := orgContext(ctx)
	res, err := c.punch.Clock(ctx.Request().Context(), oc, req)
	if err != nil {
		return c.handleServiceError(ctx, err, nil)
	}

	resp := ClockResponse{
		Entry:           dto.NewEntry(res.Entry, oc.Timezone),
		ReconcileFailed: res.ReconcileErr != nil,
	}
	if res.Outcome != nil {
		o := dto.NewOutcome(*res.Outcome, oc.Timezone)
		resp.Outcome = &o
	}
	return ctx.JSON(http.StatusCreated, resp)
}
