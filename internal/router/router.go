package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/restaurant-storefront/internal/handler" // import the handlers that implement the storefront API
)

// Handlers bundles everything the routes need.  Session resolves the
// visitor's storefront session; Cache is the shared response cache used
// on public menu routes.
type Handlers struct {
	Health       *handler.HealthHandler
	Session      *handler.SessionHandler
	Cart         *handler.CartHandler
	ActiveOrders *handler.ActiveOrdersHandler
	Navigation   *handler.NavigationHandler
	Menu         *handler.MenuHandler
	Orders       *handler.OrderHandler
	Auth         *handler.AuthHandler
	Admin        *handler.AdminHandler

	SessionMiddleware echo.MiddlewareFunc
	Cache             echo.MiddlewareFunc
	JWTSecret         string
}

// Register wires every route onto e.
func Register(e *echo.Echo, h Handlers) {
	RegisterRoutes(e, h)
	RegisterPublic(e, h)
	RegisterStorefront(e, h)
	RegisterAdmin(e, h)
}

// RegisterRoutes registers routes that need neither a session nor a
// token.  The health check is used by load balancers and monitoring.
func RegisterRoutes(e *echo.Echo, h Handlers) {
	e.GET("/healthz", h.Health.Health)
}

// RegisterPublic registers the menu endpoints whose responses are the same
// for every visitor.  They run without the session middleware so the
// response cache never sees a per-visitor cookie.
func RegisterPublic(e *echo.Echo, h Handlers) {
	var mw []echo.MiddlewareFunc
	if h.Cache != nil {
		mw = append(mw, h.Cache)
	}
	e.GET("/v1/categories", h.Menu.Categories, mw...)
	e.GET("/v1/menu/search", h.Menu.Search, mw...)
}
