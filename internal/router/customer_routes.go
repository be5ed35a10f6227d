package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-storefront/internal/middleware"
	"github.com/iliyamo/restaurant-storefront/internal/utils"
)

// RegisterStorefront registers the per-visitor endpoints under /v1.  All
// of them run behind the session middleware, which resolves (or creates)
// the visitor's session from the sid cookie.  /v1/my-orders additionally
// requires a CUSTOMER token.
func RegisterStorefront(e *echo.Echo, h Handlers) {
	g := e.Group("/v1", h.SessionMiddleware)

	g.GET("/session", h.Session.Get)
	g.DELETE("/session", h.Session.Clear)
	g.GET("/session/export", h.Session.Export)
	g.GET("/session/diagnostics", h.Session.Diagnostics)
	g.PUT("/session/preferences", h.Session.UpdatePreferences)

	g.GET("/cart", h.Cart.Get)
	g.POST("/cart/items", h.Cart.AddItem)
	g.PATCH("/cart/items/:fingerprint", h.Cart.UpdateQuantity)
	g.DELETE("/cart/items/:fingerprint", h.Cart.RemoveItem)
	g.DELETE("/cart", h.Cart.Clear)

	g.GET("/active-orders", h.ActiveOrders.List)
	g.POST("/active-orders/refresh", h.ActiveOrders.Refresh)
	g.POST("/active-orders/:id/advance", h.ActiveOrders.Advance)
	g.DELETE("/active-orders/:id", h.ActiveOrders.Remove)

	g.PUT("/navigation", h.Navigation.RecordRoute)
	g.PUT("/navigation/scroll", h.Navigation.RecordScroll)
	g.GET("/navigation/restore", h.Navigation.Restore)

	g.GET("/menu", h.Menu.Get)

	g.POST("/orders", h.Orders.Checkout)
	g.GET("/orders/:id", h.Orders.Get)
	g.GET("/my-orders", h.Orders.MyOrders,
		middleware.JWTAuth(h.JWTSecret),
		middleware.RequireRole(utils.RoleCustomer),
	)

	g.POST("/auth/otp/verify", h.Auth.VerifyOTP)
	g.POST("/auth/logout", h.Auth.Logout)
}
