package middleware

import (
    "net/http"
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/restaurant-storefront/internal/logger"
    "github.com/iliyamo/restaurant-storefront/internal/storefront"
)

// SessionCookie is the cookie holding the visitor id.
const SessionCookie = "sid"

const (
    sessionKey   = "session"
    sessionIDKey = "session_id"
)

// SessionCookieConfig controls the visitor cookie.
type SessionCookieConfig struct {
    Secure bool
    MaxAge time.Duration
}

// Session resolves the visitor's storefront session from the sid cookie,
// issuing a new random id when the cookie is missing or malformed, and
// stores it in the context for handlers (see CurrentSession).
func Session(reg *storefront.Registry, cfg SessionCookieConfig, log *logger.Logger) echo.MiddlewareFunc {
    log = logger.OrNop(log)
    if cfg.MaxAge <= 0 {
        cfg.MaxAge = 7 * 24 * time.Hour
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            id := cookieVisitorID(c)
            if id == "" {
                id = uuid.NewString()
                c.SetCookie(&http.Cookie{
                    Name:     SessionCookie,
                    Value:    id,
                    Path:     "/",
                    MaxAge:   int(cfg.MaxAge / time.Second),
                    HttpOnly: true,
                    Secure:   cfg.Secure,
                    SameSite: http.SameSiteLaxMode,
                })
            }

            s, err := reg.Open(c.Request().Context(), id)
            if err != nil {
                log.Error("open session failed", "session_id", id, "error", err)
                return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session unavailable"})
            }
            c.Set(sessionIDKey, id)
            c.Set(sessionKey, s)
            return next(c)
        }
    }
}

// CurrentSession returns the session stored by Session, or nil.
func CurrentSession(c echo.Context) *storefront.Session {
    s, _ := c.Get(sessionKey).(*storefront.Session)
    return s
}

// CurrentSessionID returns the visitor id stored by Session, or "".
func CurrentSessionID(c echo.Context) string {
    id, _ := c.Get(sessionIDKey).(string)
    return id
}
