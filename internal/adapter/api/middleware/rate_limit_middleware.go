package middleware

import (
	"github.com/labstack/echo/v4"

	"marketchat/internal/infrastructure/ratelimit"
	"marketchat/pkg/errors"
	"marketchat/pkg/logger"
	"marketchat/pkg/response"
)

// RateLimit throttles action per authenticated user, falling back to the
// client IP on unauthenticated routes.
func RateLimit(rl *ratelimit.RateLimiter, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key, _ := c.Get(ContextUID).(string)
			if key == "" {
				key = "ip:" + c.RealIP()
			}

			if allowed, wait := rl.Allow(key, action); !allowed {
				logger.Warn("RATE LIMIT: %s blocked for %s (retry in %v)", action, key, wait)
				return response.Error(c, errors.TooManyRequests("Rate limit exceeded", wait))
			}

			return next(c)
		}
	}
}
