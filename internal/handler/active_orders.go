package handler

import (
    "context"
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/restaurant-storefront/internal/logger"
    "github.com/iliyamo/restaurant-storefront/internal/orders"
    "github.com/iliyamo/restaurant-storefront/internal/session"
    "github.com/iliyamo/restaurant-storefront/internal/storefront"
)

// ActiveOrdersHandler serves the orders tracked in the visitor's session.
type ActiveOrdersHandler struct {
    Log *logger.Logger
}

type activeOrderView struct {
    session.ActiveOrder
    TimeRemainingMs int64 `json:"timeRemainingMs"`
}

func activeOrdersView(s *storefront.Session) []activeOrderView {
    now := s.Manager.Now()
    list := s.Orders.Orders()
    out := make([]activeOrderView, 0, len(list))
    for _, o := range list {
        out = append(out, activeOrderView{ActiveOrder: o, TimeRemainingMs: orders.Remaining(o, now).Milliseconds()})
    }
    return out
}

func (h *ActiveOrdersHandler) List(c echo.Context) error {
    s, ok := currentSession(c)
    if !ok {
        return nil
    }
    return c.JSON(http.StatusOK, echo.Map{"orders": activeOrdersView(s)})
}

// Advance moves a tracked order to the next status of the delivery flow.
// The change is local; the next remote refresh overrides it.
func (h *ActiveOrdersHandler) Advance(c echo.Context) error {
    s, ok := currentSession(c)
    if !ok {
        return nil
    }
    id := c.Param("id")
    o, found := s.Orders.Get(id)
    if !found {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "order not tracked"})
    }
    next, ok := orders.Next(o.Status)
    if !ok {
        return c.JSON(http.StatusConflict, echo.Map{"error": "order is at its final status"})
    }
    s.Orders.UpdateStatus(c.Request().Context(), id, next, nil)
    o, _ = s.Orders.Get(id)
    return c.JSON(http.StatusOK, activeOrderView{ActiveOrder: o, TimeRemainingMs: orders.Remaining(o, s.Manager.Now()).Milliseconds()})
}

func (h *ActiveOrdersHandler) Remove(c echo.Context) error {
    s, ok := currentSession(c)
    if !ok {
        return nil
    }
    if !s.Orders.Remove(c.Request().Context(), c.Param("id")) {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "order not tracked"})
    }
    return c.NoContent(http.StatusNoContent)
}

// Refresh replaces the tracked orders with the signed-in customer's active
// remote orders.  On failure the tracked orders are kept.
func (h *ActiveOrdersHandler) Refresh(c echo.Context) error {
    s, ok := currentSession(c)
    if !ok {
        return nil
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), remoteTimeout)
    defer cancel()
    err := s.Orders.RefreshFromRemote(ctx)
    switch {
    case errors.Is(err, orders.ErrNoCustomer):
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "sign in to refresh orders"})
    case err != nil:
        logger.OrNop(h.Log).Warn("active order refresh failed", "error", err)
        return c.JSON(http.StatusBadGateway, echo.Map{"error": "orders service unavailable"})
    }
    return c.JSON(http.StatusOK, echo.Map{"orders": activeOrdersView(s)})
}
