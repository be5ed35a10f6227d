package middleware

// identity.go pulls the caller's identity out of a request for use inside
// rate limit keys.  The limiter is mounted globally, ahead of Session and
// JWTAuth, so both helpers fall back to reading the sid cookie and the
// bearer token themselves.  Missing values come back as "guest" and
// "anon" so they can always be used inside a key.

import (
    "strings"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/restaurant-storefront/internal/utils"
)

// userID returns the authenticated subject set by JWTAuth.  Without it a
// bearer token that verifies against secret is read directly; an empty
// secret skips that step.
func userID(c echo.Context, secret string) string {
    if v, ok := c.Get("user_id").(string); ok && v != "" {
        return v
    }
    if secret != "" {
        auth := c.Request().Header.Get("Authorization")
        if raw, ok := strings.CutPrefix(auth, "Bearer "); ok {
            if sub, _, err := utils.ParseAccessToken(secret, raw); err == nil && sub != "" {
                return sub
            }
        }
    }
    return "guest"
}

// visitorID returns the session id set by Session, else the visitor id in
// the sid cookie, else "anon".
func visitorID(c echo.Context) string {
    if v, ok := c.Get(sessionIDKey).(string); ok && v != "" {
        return v
    }
    if id := cookieVisitorID(c); id != "" {
        return id
    }
    return "anon"
}

// cookieVisitorID returns the sid cookie value when it is a well formed
// visitor id, or "".
func cookieVisitorID(c echo.Context) string {
    ck, err := c.Cookie(SessionCookie)
    if err != nil {
        return ""
    }
    if _, err := uuid.Parse(ck.Value); err != nil {
        return ""
    }
    return ck.Value
}
