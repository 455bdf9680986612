package router

import (
	"github.com/labstack/echo/v4"

	"marketchat/internal/adapter/api/handler"
	"marketchat/internal/adapter/api/middleware"
)

// SetupWebSocketRouter accepts the token as a query parameter since browser
// websocket clients cannot send an Authorization header.
func SetupWebSocketRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware) {
	e.GET("/ws", handler.GetWebSocketHandler().HandleWebSocket, authMiddleware.AuthenticateQuery)
}
