package handler // declare the package name; contains HTTP handlers

import (
    "context"
    "net/http" // net/http provides status codes and response helpers

    "github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Pinger checks one dependency, e.g. (*sql.DB).PingContext.
type Pinger func(ctx context.Context) error

// HealthHandler reports liveness plus the state of the backing stores.
type HealthHandler struct {
    Checks map[string]Pinger
}

// Health is the health-check endpoint used by load balancers and
// monitoring systems.  It answers 200 with {"status":"ok"} when every
// check passes and 503 with the failing dependency names otherwise.
func (h *HealthHandler) Health(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), remoteTimeout)
    defer cancel()
    failed := echo.Map{}
    for name, ping := range h.Checks {
        if ping == nil {
            continue
        }
        if err := ping(ctx); err != nil {
            failed[name] = "unavailable"
        }
    }
    if len(failed) > 0 {
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded", "checks": failed})
    }
    return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
