package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// KeyLimiter decides per key; internal/service/ratelimit.Limiter satisfies it.
type KeyLimiter interface {
	Allow(key string) bool
}

// RateLimit rejects requests over the per-client budget with 429.
// WebSocket upgrades and /metrics are exempt.
func RateLimit(l KeyLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if l == nil || c.Path() == "/metrics" || c.IsWebSocket() {
				return next(c)
			}
			if !l.Allow(c.RealIP()) {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"status":  http.StatusTooManyRequests,
					"message": http.StatusText(http.StatusTooManyRequests),
				})
			}
			return next(c)
		}
	}
}
