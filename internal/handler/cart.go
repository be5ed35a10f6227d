package handler

import (
    "fmt"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/restaurant-storefront/internal/cart"
    "github.com/iliyamo/restaurant-storefront/internal/session"
)

// CartHandler serves the visitor's cart.
type CartHandler struct{}

type cartResp struct {
    Items  []cart.Line `json:"items"`
    Totals cart.Totals `json:"totals"`
}

func cartView(s *cart.Store) cartResp {
    return cartResp{Items: s.Lines(), Totals: s.Totals()}
}

func (h *CartHandler) Get(c echo.Context) error {
    s, ok := currentSession(c)
    if !ok {
        return nil
    }
    return c.JSON(http.StatusOK, cartView(s.Cart))
}

type addItemReq struct {
    ID       string         `json:"id"`
    Name     string         `json:"name"`
    Price    float64        `json:"price"`
    Quantity int            `json:"quantity"`
    Image    string         `json:"image"`
    Category string         `json:"category"`
    Options  map[string]any `json:"options"`
}

// AddItem adds quantity units (default 1, at most cart.MaxQuantity) of a
// product.  The same product with the same options lands on the same line.
func (h *CartHandler) AddItem(c echo.Context) error {
    s, ok := currentSession(c)
    if !ok {
        return nil
    }
    var req addItemReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.ID = strings.TrimSpace(req.ID)
    req.Name = strings.TrimSpace(req.Name)
    if req.ID == "" || req.Name == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "id and name required"})
    }
    if req.Price < 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "price must not be negative"})
    }
    if req.Quantity > cart.MaxQuantity {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": fmt.Sprintf("quantity must not exceed %d", cart.MaxQuantity)})
    }
    if req.Quantity <= 0 {
        req.Quantity = 1
    }
    fp := s.Cart.AddQuantity(c.Request().Context(), session.CartItem{
        ID:        req.ID,
        Name:      req.Name,
        UnitPrice: req.Price,
        ImageURL:  req.Image,
        Category:  req.Category,
        Options:   req.Options,
    }, req.Quantity)
    return c.JSON(http.StatusCreated, echo.Map{"fingerprint": fp, "cart": cartView(s.Cart)})
}

type quantityReq struct {
    Quantity *int `json:"quantity"`
}

// UpdateQuantity sets a line's quantity; zero or less removes the line.
func (h *CartHandler) UpdateQuantity(c echo.Context) error {
    s, ok := currentSession(c)
    if !ok {
        return nil
    }
    var req quantityReq
    if err := c.Bind(&req); err != nil || req.Quantity == nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity required"})
    }
    if *req.Quantity > cart.MaxQuantity {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": fmt.Sprintf("quantity must not exceed %d", cart.MaxQuantity)})
    }
    if !s.Cart.UpdateQuantity(c.Request().Context(), c.Param("fingerprint"), *req.Quantity) {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "cart item not found"})
    }
    return c.JSON(http.StatusOK, cartView(s.Cart))
}

func (h *CartHandler) RemoveItem(c echo.Context) error {
    s, ok := currentSession(c)
    if !ok {
        return nil
    }
    if !s.Cart.RemoveItem(c.Request().Context(), c.Param("fingerprint")) {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "cart item not found"})
    }
    return c.JSON(http.StatusOK, cartView(s.Cart))
}

func (h *CartHandler) Clear(c echo.Context) error {
    s, ok := currentSession(c)
    if !ok {
        return nil
    }
    s.Cart.Clear(c.Request().Context())
    return c.NoContent(http.StatusNoContent)
}
