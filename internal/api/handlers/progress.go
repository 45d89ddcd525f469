package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"resumetex/internal/logging"
	"resumetex/internal/progress"
)

// Subscriber is the read side of a progress hub.
type Subscriber interface {
	Subscribe(requestID string) (<-chan progress.Event, func())
}

// ProgressHandler handles GET /api/v1/progress/:requestId as a server-sent
// event stream. Recent history is replayed first; the stream ends after
// the terminal event or when the client goes away.
func ProgressHandler(hub Subscriber, heartbeat time.Duration) echo.HandlerFunc {
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	return func(c echo.Context) error {
		id := c.Param("requestId")
		if id == "" {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", "request id is required", requestID(c))
		}

		events, cancel := hub.Subscribe(id)
		defer cancel()

		res := c.Response()
		h := res.Header()
		h.Set(echo.HeaderContentType, "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		res.WriteHeader(http.StatusOK)
		if err := progress.WriteSSEComment(res, "stream "+id); err != nil {
			return nil
		}
		res.Flush()

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		ctx := c.Request().Context()

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				if err := progress.WriteSSE(res, ev); err != nil {
					logging.GetGlobalLogger().Debug("Progress client went away", map[string]interface{}{
						"request_id": id,
						"error":      err.Error(),
					})
					return nil
				}
				res.Flush()
			case <-ticker.C:
				if err := progress.WriteSSEComment(res, "keep-alive"); err != nil {
					return nil
				}
				res.Flush()
			case <-ctx.Done():
				return nil
			}
		}
	}
}
