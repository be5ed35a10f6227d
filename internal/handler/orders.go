package handler

import (
    "context"
    "errors"
    "fmt"
    "net/http"
    "sort"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/restaurant-storefront/internal/cart"
    "github.com/iliyamo/restaurant-storefront/internal/logger"
    "github.com/iliyamo/restaurant-storefront/internal/middleware"
    "github.com/iliyamo/restaurant-storefront/internal/model"
    "github.com/iliyamo/restaurant-storefront/internal/orders"
    "github.com/iliyamo/restaurant-storefront/internal/queue"
    "github.com/iliyamo/restaurant-storefront/internal/repository"
    "github.com/iliyamo/restaurant-storefront/internal/utils"
)

// OrderHandler places orders from the cart and looks them up.
type OrderHandler struct {
    Orders      OrderStore
    Events      EventPublisher
    Log         *logger.Logger
    DeliveryFee float64
    // DeliveryWindow is the delivery estimate given to new orders.
    DeliveryWindow time.Duration
}

type checkoutReq struct {
    CustomerName    string `json:"customerName"`
    CustomerEmail   string `json:"customerEmail"`
    CustomerPhone   string `json:"customerPhone"`
    DeliveryAddress string `json:"deliveryAddress"`
    PaymentMethod   string `json:"paymentMethod"`
    Notes           string `json:"notes"`
}

// Checkout turns the cart into a remote order, starts tracking it and
// empties the cart.  Customer fields left blank are taken from the signed
// in user when there is one.
func (h *OrderHandler) Checkout(c echo.Context) error {
    s, ok := currentSession(c)
    if !ok {
        return nil
    }
    var req checkoutReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if s.Cart.Empty() {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "cart is empty"})
    }
    ctx := c.Request().Context()
    if doc := s.Manager.Load(ctx); doc != nil && doc.User != nil {
        req.CustomerName = firstNonEmpty(req.CustomerName, doc.User.Name)
        req.CustomerEmail = firstNonEmpty(req.CustomerEmail, doc.User.Email)
        req.CustomerPhone = firstNonEmpty(req.CustomerPhone, doc.User.Phone)
        req.DeliveryAddress = firstNonEmpty(req.DeliveryAddress, doc.User.DeliveryAddress)
    }
    phone := utils.NormalizePhone(req.CustomerPhone)
    if strings.TrimSpace(req.CustomerName) == "" || phone == "" || strings.TrimSpace(req.DeliveryAddress) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "customerName, customerPhone and deliveryAddress required"})
    }
    if req.PaymentMethod == "" {
        req.PaymentMethod = "cash"
    }
    window := h.DeliveryWindow
    if window <= 0 {
        window = orders.DefaultDeliveryWindow
    }

    rctx, cancel := context.WithTimeout(ctx, remoteTimeout)
    defer cancel()
    o, err := h.Orders.CreateOrder(rctx, model.CreateOrderRequest{
        CustomerName:    req.CustomerName,
        CustomerEmail:   req.CustomerEmail,
        CustomerPhone:   phone,
        DeliveryAddress: req.DeliveryAddress,
        Items:           orderItems(s.Cart.Lines()),
        DeliveryFee:     h.DeliveryFee,
        PaymentMethod:   req.PaymentMethod,
        Notes:           req.Notes,
        EstimatedWindow: window,
    })
    if err != nil {
        logger.OrNop(h.Log).Error("create order failed", "error", err)
        return c.JSON(http.StatusBadGateway, echo.Map{"error": "order could not be placed"})
    }

    active := orders.FromRemoteOrder(o)
    s.Orders.Add(ctx, active)
    s.Cart.Clear(ctx)
    publishAsync(h.Events, logger.OrNop(h.Log), queue.NewOrderEvent(queue.OrderCreated, o.ID, o.OrderNumber, o.Status, "customer", ""))

    return c.JSON(http.StatusCreated, echo.Map{"order": o, "activeOrder": active})
}

// orderItems converts cart lines into order lines.  Options become
// "key: value" customizations in key order.
func orderItems(lines []cart.Line) []model.OrderItem {
    out := make([]model.OrderItem, 0, len(lines))
    for _, l := range lines {
        keys := make([]string, 0, len(l.Options))
        for k := range l.Options {
            keys = append(keys, k)
        }
        sort.Strings(keys)
        var custom []string
        for _, k := range keys {
            custom = append(custom, fmt.Sprintf("%s: %v", k, l.Options[k]))
        }
        out = append(out, model.OrderItem{
            MenuItemID:     l.ID,
            Name:           l.Name,
            Quantity:       l.Quantity,
            UnitPrice:      l.UnitPrice,
            Customizations: custom,
        })
    }
    return out
}

// Get returns an order the visitor is allowed to see: one tracked in the
// session, or one placed with the signed-in user's email or phone.
func (h *OrderHandler) Get(c echo.Context) error {
    s, ok := currentSession(c)
    if !ok {
        return nil
    }
    id := c.Param("id")
    ctx, cancel := context.WithTimeout(c.Request().Context(), remoteTimeout)
    defer cancel()

    var (
        o   model.Order
        err error
    )
    if _, tracked := s.Orders.Get(id); tracked {
        o, err = h.Orders.GetOrder(ctx, id)
    } else {
        var email, phone string
        if doc := s.Manager.Load(ctx); doc != nil && doc.User != nil {
            email, phone = doc.User.Email, doc.User.Phone
        }
        o, err = h.Orders.GetOrderForCustomer(ctx, id, email, phone)
    }
    switch {
    case errors.Is(err, repository.ErrNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
    case errors.Is(err, repository.ErrForbidden):
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    case err != nil:
        return c.JSON(http.StatusBadGateway, echo.Map{"error": "orders service unavailable"})
    }
    return c.JSON(http.StatusOK, o)
}

// MyOrders lists every order of the authenticated customer.  The JWT
// subject is the phone; the email comes from the session user when that
// user is the same customer.
func (h *OrderHandler) MyOrders(c echo.Context) error {
    phone, _ := c.Get("user_id").(string)
    if phone == "" {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), remoteTimeout)
    defer cancel()
    email := ""
    if s := middleware.CurrentSession(c); s != nil {
        if doc := s.Manager.Load(ctx); doc != nil && doc.User != nil && doc.User.Phone == phone {
            email = doc.User.Email
        }
    }
    list, err := h.Orders.GetOrdersByCustomer(ctx, email, phone)
    if err != nil {
        return c.JSON(http.StatusBadGateway, echo.Map{"error": "orders service unavailable"})
    }
    return c.JSON(http.StatusOK, echo.Map{"orders": list})
}

func firstNonEmpty(vals ...string) string {
    for _, v := range vals {
        if strings.TrimSpace(v) != "" {
            return v
        }
    }
    return ""
}
