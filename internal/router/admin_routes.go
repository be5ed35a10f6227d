package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-storefront/internal/middleware"
	"github.com/iliyamo/restaurant-storefront/internal/utils"
)

// RegisterAdmin registers the order dashboard endpoints.  Login is open;
// everything else requires a valid JWT with the ADMIN role.
func RegisterAdmin(e *echo.Echo, h Handlers) {
	e.POST("/v1/admin/login", h.Admin.Login)

	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(h.JWTSecret),
		middleware.RequireRole(utils.RoleAdmin),
	)
	g.PATCH("/orders/:id/status", h.Admin.UpdateStatus)
}
