package router

import (
	"github.com/labstack/echo/v4"

	"marketchat/internal/adapter/api/middleware"
	"marketchat/internal/infrastructure/ratelimit"
)

func Setup(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, rateLimiter *ratelimit.RateLimiter) {
	SetupChatRouter(e, authMiddleware)
	SetupWebSocketRouter(e, authMiddleware)
	SetupMediaRouter(e, authMiddleware, rateLimiter)
	SetupDevRouter(e, rateLimiter)
	SetupHealthRouter(e)
}
