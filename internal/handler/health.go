package handler // HTTP handlers for the auth surface and probes

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
)

// Health is the liveness probe. It returns a plain text "ok" as long as
// the process serves HTTP.
func Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}

// Pinger is satisfied by *sql.DB and by a small adapter over the Redis client.
type Pinger interface {
    PingContext(ctx context.Context) error
}

// Ready is the readiness probe: every named dependency must answer a ping
// within two seconds. The body lists the failing ones by name only.
func Ready(deps map[string]Pinger) echo.HandlerFunc {
    return func(c echo.Context) error {
        ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
        defer cancel()
        down := []string{}
        for name, p := range deps {
            if p == nil {
                continue
            }
            if err := p.PingContext(ctx); err != nil {
                down = append(down, name)
            }
        }
        if len(down) > 0 {
            return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable", "down": down})
        }
        return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
    }
}
