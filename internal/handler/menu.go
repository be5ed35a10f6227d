package handler

import (
    "context"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/restaurant-storefront/internal/logger"
    "github.com/iliyamo/restaurant-storefront/internal/model"
    "github.com/iliyamo/restaurant-storefront/internal/session"
)

// MenuHandler serves the menu.  The full menu is cached in the visitor's
// session and fetched again only when the cache is missing or stale;
// categories and search go straight to the remote API (and the shared
// response cache in front of it).
type MenuHandler struct {
    Menu MenuSource
    Log  *logger.Logger
}

type menuResp struct {
    Categories          []model.Category            `json:"categories"`
    MenuItemsByCategory map[string][]model.MenuItem `json:"menuItems"`
    Deals               []model.Deal                `json:"deals"`
    FetchedAt           time.Time                   `json:"fetchedAt"`
    Source              string                      `json:"source"`
}

func menuFromCache(mc *session.MenuCache, source string) menuResp {
    return menuResp{
        Categories:          mc.Categories,
        MenuItemsByCategory: mc.MenuItemsByCategory,
        Deals:               mc.Deals,
        FetchedAt:           time.UnixMilli(mc.FetchedAtEpochMs).UTC(),
        Source:              source,
    }
}

// Get returns the session's cached menu, refetching it when needed.  If the
// refetch fails and an older menu is cached, that menu is served as
// "stale".
func (h *MenuHandler) Get(c echo.Context) error {
    s, ok := currentSession(c)
    if !ok {
        return nil
    }
    ctx := c.Request().Context()
    doc := s.Manager.Load(ctx)
    if !s.Manager.ShouldRefetchMenu(ctx) && doc != nil && doc.MenuCache != nil {
        return c.JSON(http.StatusOK, menuFromCache(doc.MenuCache, "cache"))
    }

    cats, items, deals, err := h.fetch(ctx)
    if err != nil {
        logger.OrNop(h.Log).Warn("menu fetch failed", "error", err)
        if doc != nil && doc.MenuCache != nil {
            return c.JSON(http.StatusOK, menuFromCache(doc.MenuCache, "stale"))
        }
        return c.JSON(http.StatusBadGateway, echo.Map{"error": "menu unavailable"})
    }
    _ = s.Manager.SetMenuCache(ctx, cats, items, deals)
    return c.JSON(http.StatusOK, menuResp{
        Categories:          cats,
        MenuItemsByCategory: items,
        Deals:               deals,
        FetchedAt:           s.Manager.Now().UTC(),
        Source:              "remote",
    })
}

func (h *MenuHandler) fetch(parent context.Context) ([]model.Category, map[string][]model.MenuItem, []model.Deal, error) {
    ctx, cancel := context.WithTimeout(parent, remoteTimeout)
    defer cancel()
    cats, err := h.Menu.GetCategories(ctx)
    if err != nil {
        return nil, nil, nil, err
    }
    items, err := h.Menu.GetAllMenuItems(ctx)
    if err != nil {
        return nil, nil, nil, err
    }
    deals, err := h.Menu.GetDeals(ctx)
    if err != nil {
        return nil, nil, nil, err
    }
    return cats, items, deals, nil
}

func (h *MenuHandler) Categories(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), remoteTimeout)
    defer cancel()
    cats, err := h.Menu.GetCategories(ctx)
    if err != nil {
        return c.JSON(http.StatusBadGateway, echo.Map{"error": "menu unavailable"})
    }
    return c.JSON(http.StatusOK, echo.Map{"categories": cats})
}

// Search matches menu items by name or description.  Query params: q
// (required), limit (default 20, max 100).
func (h *MenuHandler) Search(c echo.Context) error {
    q := c.QueryParam("q")
    if q == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "q required"})
    }
    limit, _ := strconv.Atoi(c.QueryParam("limit"))
    ctx, cancel := context.WithTimeout(c.Request().Context(), remoteTimeout)
    defer cancel()
    items, err := h.Menu.SearchMenuItems(ctx, q, limit)
    if err != nil {
        return c.JSON(http.StatusBadGateway, echo.Map{"error": "menu unavailable"})
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}
