// Package handler exposes the storefront's HTTP handlers.  Per-visitor
// handlers read the session bundle that middleware.Session stored in the
// context; remote data comes from the interfaces below, implemented by the
// MySQL repositories.
package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/restaurant-storefront/internal/logger"
    "github.com/iliyamo/restaurant-storefront/internal/middleware"
    "github.com/iliyamo/restaurant-storefront/internal/model"
    "github.com/iliyamo/restaurant-storefront/internal/queue"
    "github.com/iliyamo/restaurant-storefront/internal/storefront"
)

// MenuSource is the remote menu API.
type MenuSource interface {
    GetCategories(ctx context.Context) ([]model.Category, error)
    GetAllMenuItems(ctx context.Context) (map[string][]model.MenuItem, error)
    GetDeals(ctx context.Context) ([]model.Deal, error)
    SearchMenuItems(ctx context.Context, term string, limit int) ([]model.MenuItem, error)
}

// OrderStore is the remote orders API.
type OrderStore interface {
    CreateOrder(ctx context.Context, req model.CreateOrderRequest) (model.Order, error)
    GetOrder(ctx context.Context, id string) (model.Order, error)
    GetOrderForCustomer(ctx context.Context, id, email, phone string) (model.Order, error)
    GetOrdersByCustomer(ctx context.Context, email, phone string) ([]model.Order, error)
    UpdateOrderStatus(ctx context.Context, id, status, notes, actor string) (model.Order, error)
}

// EventPublisher sends order events to the broker.
type EventPublisher interface {
    PublishOrderEvent(ctx context.Context, ev queue.OrderEvent) error
}

// remoteTimeout bounds every call to the remote API.
const remoteTimeout = 5 * time.Second

// currentSession returns the visitor's session or writes a 500 response.
func currentSession(c echo.Context) (*storefront.Session, bool) {
    s := middleware.CurrentSession(c)
    if s == nil {
        _ = c.JSON(http.StatusInternalServerError, echo.Map{"error": "session unavailable"})
        return nil, false
    }
    return s, true
}

// publishAsync sends ev without holding up the response.  Failures are
// logged by the publisher.
func publishAsync(events EventPublisher, log *logger.Logger, ev queue.OrderEvent) {
    if events == nil {
        return
    }
    go func() {
        ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
        defer cancel()
        if err := events.PublishOrderEvent(ctx, ev); err != nil {
            log.Warn("order event not published", "event", ev.Type, "order_id", ev.OrderID, "error", err)
        }
    }()
}
