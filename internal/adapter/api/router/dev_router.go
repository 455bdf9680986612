package router

import (
	"github.com/labstack/echo/v4"

	"marketchat/internal/adapter/api/handler"
	"marketchat/internal/adapter/api/middleware"
	"marketchat/internal/infrastructure/ratelimit"
)

// SetupDevRouter mounts the token endpoint only when a dev token handler
// was configured (development with AUTH_MODE=dev).
func SetupDevRouter(e *echo.Echo, rateLimiter *ratelimit.RateLimiter) {
	devTokenHandler := handler.GetDevTokenHandler()
	if devTokenHandler == nil {
		return
	}

	e.POST("/v1/dev/token", devTokenHandler.IssueToken, middleware.RateLimit(rateLimiter, ratelimit.ActionIssueToken))
}
