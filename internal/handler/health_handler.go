package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"shop-service/pkg/logger"
)

const healthTimeout = 2 * time.Second

// HealthCheck pings every registered dependency.
func (h *Handler) HealthCheck(c echo.Context) error {
	log := logger.FromEcho(c)

	response := map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	}
	status := http.StatusOK

	checks := make(map[string]string, len(h.checks))
	for name, pinger := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
		err := pinger.Ping(ctx)
		cancel()
		if err != nil {
			log.Error("Health check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = "error"
			response["status"] = "error"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	if len(checks) > 0 {
		response["checks"] = checks
	}

	return c.JSON(status, response)
}
