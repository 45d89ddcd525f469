package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"resumetex/internal/background"
)

// WorkerStatsHandler returns background worker pool statistics
func WorkerStatsHandler(taskManager background.TaskManager) echo.HandlerFunc {
	return func(c echo.Context) error {
		stats := taskManager.Stats()
		code := http.StatusOK
		if !stats.Running {
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, map[string]interface{}{
			"success":    stats.Running,
			"stats":      stats,
			"request_id": requestID(c),
			"timestamp":  time.Now(),
		})
	}
}
