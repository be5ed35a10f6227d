package handler

import (
    "context"
    "errors"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/restaurant-storefront/internal/config"
    "github.com/iliyamo/restaurant-storefront/internal/logger"
    "github.com/iliyamo/restaurant-storefront/internal/model"
    "github.com/iliyamo/restaurant-storefront/internal/queue"
    "github.com/iliyamo/restaurant-storefront/internal/repository"
    "github.com/iliyamo/restaurant-storefront/internal/session"
    "github.com/iliyamo/restaurant-storefront/internal/utils"
)

type tokenPart struct {
    Token   string    `json:"token"`
    Expires time.Time `json:"expires"`
}

// AuthHandler signs customers in with a one-time code.  Code delivery is
// not implemented: any four digit code is accepted for any phone number.
type AuthHandler struct {
    Cfg config.Config
    Log *logger.Logger
}

type otpVerifyReq struct {
    Phone string `json:"phone"`
    Code  string `json:"code"`
    Name  string `json:"name"`
    Email string `json:"email"`
}

// VerifyOTP issues a CUSTOMER token and stores the user in the session.
func (h *AuthHandler) VerifyOTP(c echo.Context) error {
    s, ok := currentSession(c)
    if !ok {
        return nil
    }
    var req otpVerifyReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    phone := utils.NormalizePhone(req.Phone)
    if phone == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "valid phone required"})
    }
    if !utils.ValidOTPCode(strings.TrimSpace(req.Code)) {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid code"})
    }

    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, phone, utils.RoleCustomer, h.Cfg.AccessTTLMin)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
    }
    user := session.UserProfile{
        ID:    phone,
        Phone: phone,
        Email: strings.ToLower(strings.TrimSpace(req.Email)),
        Name:  strings.TrimSpace(req.Name),
    }
    if err := s.Manager.SetUser(c.Request().Context(), &user); err != nil {
        logger.OrNop(h.Log).Warn("store user in session failed", "user_id", phone, "error", err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "user":   user,
        "access": tokenPart{Token: access.Token, Expires: access.Exp},
    })
}

// Logout removes the user from the session.  Access tokens are stateless
// and simply expire.
func (h *AuthHandler) Logout(c echo.Context) error {
    s, ok := currentSession(c)
    if !ok {
        return nil
    }
    if err := s.Manager.SetUser(c.Request().Context(), nil); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
    }
    return c.NoContent(http.StatusNoContent)
}

// AdminHandler backs the order dashboard.
type AdminHandler struct {
    Cfg    config.Config
    Orders OrderStore
    Events EventPublisher
    Log    *logger.Logger
}

type adminLoginReq struct {
    Password string `json:"password"`
}

// Login checks the dashboard password against ADMIN_PASSWORD_HASH and
// issues an ADMIN token.
func (h *AdminHandler) Login(c echo.Context) error {
    if h.Cfg.AdminPasswordHash == "" {
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "admin login disabled"})
    }
    var req adminLoginReq
    if err := c.Bind(&req); err != nil || req.Password == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "password required"})
    }
    if !utils.VerifyPassword(h.Cfg.AdminPasswordHash, req.Password) {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
    }
    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, "admin", utils.RoleAdmin, h.Cfg.AccessTTLMin)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
    }
    return c.JSON(http.StatusOK, echo.Map{"access": tokenPart{Token: access.Token, Expires: access.Exp}})
}

type statusReq struct {
    Status string `json:"status"`
    Notes  string `json:"notes"`
}

// UpdateStatus changes a remote order's status and records who did it.
func (h *AdminHandler) UpdateStatus(c echo.Context) error {
    var req statusReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.Status = strings.ToLower(strings.TrimSpace(req.Status))
    if !model.ValidOrderStatus(req.Status) {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
    }
    actor, _ := c.Get("user_id").(string)

    ctx, cancel := context.WithTimeout(c.Request().Context(), remoteTimeout)
    defer cancel()
    o, err := h.Orders.UpdateOrderStatus(ctx, c.Param("id"), req.Status, req.Notes, actor)
    switch {
    case errors.Is(err, repository.ErrNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
    case errors.Is(err, repository.ErrConflict):
        return c.JSON(http.StatusConflict, echo.Map{"error": "order is already closed"})
    case err != nil:
        logger.OrNop(h.Log).Error("update order status failed", "order_id", c.Param("id"), "error", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
    }
    publishAsync(h.Events, logger.OrNop(h.Log), queue.NewOrderEvent(queue.OrderStatusChanged, o.ID, o.OrderNumber, o.Status, actor, req.Notes))
    return c.JSON(http.StatusOK, o)
}
