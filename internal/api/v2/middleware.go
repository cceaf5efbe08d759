package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/geoclock/timekeeper/internal/api/auth"
	"github.com/geoclock/timekeeper/internal/datastore/repository"
	"github.com/geoclock/timekeeper/internal/errors"
	"github.com/geoclock/timekeeper/internal/ledger"
	"github.com/geoclock/timekeeper/internal/logger"
)

// TimezoneHeader overrides the organization zone for one request.
const TimezoneHeader = "X-Timezone"

const orgContextKey = "org_context"

// AuthMiddleware verifies the bearer token, loads the caller's membership
// and organization, resolves the request zone and stores the resulting
// OrgContext on the echo context.
func (c *Controller) AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		raw, err := auth.BearerToken(ctx.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.HandleError(ctx, err, "authentication required", http.StatusUnauthorized)
		}
		claims, err := c.tokens.Verify(raw)
		if err != nil {
			return c.HandleError(ctx, err, "authentication required", http.StatusUnauthorized)
		}

		reqCtx := ctx.Request().Context()
		member, err := c.repos.Directory.GetMember(reqCtx, claims.OrgID, claims.Subject)
		if err != nil {
			if errors.Is(err, repository.ErrMemberNotFound) {
				return c.HandleError(ctx, errors.ForbiddenError("not a member of this organization"),
					"access denied", http.StatusForbidden)
			}
			return c.handleServiceError(ctx, c.storageError(err, "load member"), nil)
		}
		org, err := c.repos.Directory.GetOrganization(reqCtx, claims.OrgID)
		if err != nil {
			if errors.Is(err, repository.ErrOrganizationNotFound) {
				return c.HandleError(ctx, errors.ForbiddenError("organization does not exist"),
					"access denied", http.StatusForbidden)
			}
			return c.handleServiceError(ctx, c.storageError(err, "load organization"), nil)
		}

		zone, err := c.zones.Resolve(ctx.Request().Header.Get(TimezoneHeader), org.Timezone)
		if err != nil {
			return c.handleServiceError(ctx, err, nil)
		}

		ctx.Set(orgContextKey, ledger.OrgContext{
			OrgID:          org.ID,
			ActorID:        member.UserID,
			Role:           member.Role,
			Timezone:       zone,
			MinimumMinutes: org.MinimumMinutes(),
		})

		c.logger.Trace("request authenticated",
			logger.String("user_id", member.UserID),
			logger.String("org_id", org.ID),
			logger.String("timezone", zone.String()))

		return next(ctx)
	}
}

// orgContext returns the context stored by AuthMiddleware, or the zero
// value, which every service rejects as forbidden.
func orgContext(ctx echo.Context) ledger.OrgContext {
	oc, _ := ctx.Get(orgContextKey).(ledger.OrgContext)
	return oc
}

func (c *Controller) storageError(err error, operation string) error {
	return errors.New(err).
		Component("api").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}
