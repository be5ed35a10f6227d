package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/restaurant-storefront/internal/logger"
    "github.com/iliyamo/restaurant-storefront/internal/middleware"
    "github.com/iliyamo/restaurant-storefront/internal/session"
    "github.com/iliyamo/restaurant-storefront/internal/storefront"
)

// SessionHandler exposes the visitor's session document.
type SessionHandler struct {
    Registry *storefront.Registry
    Log      *logger.Logger
}

// Get returns the current document.  A missing or invalid stored document
// is rebuilt first so the response is always a usable document.
func (h *SessionHandler) Get(c echo.Context) error {
    s, ok := currentSession(c)
    if !ok {
        return nil
    }
    ctx := c.Request().Context()
    doc := s.Manager.Load(ctx)
    if doc == nil || !s.Manager.IsValid(doc) {
        doc = s.Manager.Initialize(ctx)
    }
    return c.JSON(http.StatusOK, doc)
}

// Clear wipes the visitor's stored session and tells the client to reload.
func (h *SessionHandler) Clear(c echo.Context) error {
    id := middleware.CurrentSessionID(c)
    if _, err := h.Registry.Reset(c.Request().Context(), id); err != nil {
        logger.OrNop(h.Log).Error("session reset failed", "session_id", id, "error", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "clear failed"})
    }
    return c.JSON(http.StatusOK, echo.Map{"reload": true})
}

// Export returns the stored document as a downloadable JSON file.
func (h *SessionHandler) Export(c echo.Context) error {
    s, ok := currentSession(c)
    if !ok {
        return nil
    }
    out, err := s.Manager.ExportJSON(c.Request().Context())
    if errors.Is(err, session.ErrNoDocument) {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "no session stored"})
    }
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "export failed"})
    }
    c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="session-export.json"`)
    return c.Blob(http.StatusOK, echo.MIMEApplicationJSONCharsetUTF8, []byte(out))
}

func (h *SessionHandler) Diagnostics(c echo.Context) error {
    s, ok := currentSession(c)
    if !ok {
        return nil
    }
    return c.JSON(http.StatusOK, s.Manager.Diagnostics(c.Request().Context()))
}

type preferencesReq struct {
    Theme                *string        `json:"theme"`
    Language             *string        `json:"language"`
    NotificationsEnabled *bool          `json:"notificationsEnabled"`
    LastPizzaSelection   map[string]any `json:"lastPizzaSelection"`
}

// UpdatePreferences merges the given fields into the stored preferences.
func (h *SessionHandler) UpdatePreferences(c echo.Context) error {
    s, ok := currentSession(c)
    if !ok {
        return nil
    }
    var req preferencesReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    ctx := c.Request().Context()
    err := s.Manager.SetPreferences(ctx, session.PreferencesPatch{
        Theme:                req.Theme,
        Language:             req.Language,
        NotificationsEnabled: req.NotificationsEnabled,
        LastPizzaSelection:   req.LastPizzaSelection,
    })
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save failed"})
    }
    var prefs session.Preferences
    if doc := s.Manager.Load(ctx); doc != nil {
        prefs = doc.Preferences
    }
    return c.JSON(http.StatusOK, prefs)
}
