package ratelimit

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Middleware builds an echo middleware enforcing a limit keyed by the
// request method and the remote address (shared by every route it wraps),
// matching the teacher's per-caller tiering in
// spirit but generalized to any command route rather than workflow tiers.
func Middleware(l *Limiter, limit int64, windowSec int) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := fmt.Sprintf("%s:%s", c.Request().Method, c.RealIP())
			result, err := l.CheckKey(c.Request().Context(), key, limit, windowSec)
			if err != nil {
				return next(c)
			}
			if !result.Allowed {
				c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", result.RetryAfterSeconds))
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error": "rate limit exceeded, retry later",
				})
			}
			return next(c)
		}
	}
}
