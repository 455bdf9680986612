package router

import (
	"github.com/labstack/echo/v4"

	"marketchat/internal/adapter/api/handler"
	"marketchat/internal/adapter/api/middleware"
	"marketchat/internal/infrastructure/ratelimit"
)

func SetupMediaRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, rateLimiter *ratelimit.RateLimiter) {
	mediaHandler := handler.GetMediaHandler()

	media := e.Group("/v1/media")
	media.Use(authMiddleware.Authenticate)
	media.GET("/images", mediaHandler.ListImages)
	media.POST("/images", mediaHandler.UploadImage, middleware.RateLimit(rateLimiter, ratelimit.ActionUploadImage))
}
