package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// StorePinger checks that the backing store answers.
type StorePinger func(ctx context.Context) error

type HealthHandler struct {
	storeDriver string
	environment string
	ping        StorePinger
}

var healthHandler *HealthHandler

func NewHealthHandler(storeDriver, environment string, ping StorePinger) *HealthHandler {
	return &HealthHandler{
		storeDriver: storeDriver,
		environment: environment,
		ping:        ping,
	}
}

func SetupHealthHandler(storeDriver, environment string, ping StorePinger) {
	healthHandler = NewHealthHandler(storeDriver, environment, ping)
}

func GetHealthHandler() *HealthHandler {
	return healthHandler
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":      "Server is running",
		"store":       h.storeDriver,
		"environment": h.environment,
		"time":        time.Now().Format(time.RFC3339),
	})
}

func (h *HealthHandler) CheckStoreHealth(c echo.Context) error {
	if h.ping == nil {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "No store check configured",
			"store":  h.storeDriver,
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "Store connection failed",
			"store":  h.storeDriver,
			"error":  err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "Store connected successfully",
		"store":  h.storeDriver,
	})
}
