package handler

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"
)

// NavigationHandler records where the visitor is and tells a reloaded
// client where to go back to.
type NavigationHandler struct{}

type routeReq struct {
    Path  string            `json:"path"`
    Query map[string]string `json:"query"`
}

func (h *NavigationHandler) RecordRoute(c echo.Context) error {
    s, ok := currentSession(c)
    if !ok {
        return nil
    }
    var req routeReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if !strings.HasPrefix(req.Path, "/") {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "path must start with /"})
    }
    s.Navigation.RecordRoute(c.Request().Context(), req.Path, req.Query)
    return c.NoContent(http.StatusNoContent)
}

type scrollReq struct {
    Path   string `json:"path"`
    Offset int    `json:"offset"`
}

// RecordScroll accepts a scroll offset.  Writes are throttled; "written"
// is false when the offset was deferred.
func (h *NavigationHandler) RecordScroll(c echo.Context) error {
    s, ok := currentSession(c)
    if !ok {
        return nil
    }
    var req scrollReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if req.Path == "" || req.Offset < 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "path and non-negative offset required"})
    }
    written := s.Navigation.RecordScroll(c.Request().Context(), req.Path, req.Offset)
    return c.JSON(http.StatusAccepted, echo.Map{"written": written})
}

// Restore answers 204 when there is nothing to restore.
func (h *NavigationHandler) Restore(c echo.Context) error {
    s, ok := currentSession(c)
    if !ok {
        return nil
    }
    ctx := c.Request().Context()
    s.Navigation.Flush(ctx)
    r, found := s.Navigation.Restore(ctx)
    if !found {
        return c.NoContent(http.StatusNoContent)
    }
    return c.JSON(http.StatusOK, r)
}
