package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"resumetex/internal/api/validation"
	"resumetex/internal/logging"
	"resumetex/pkg/models"
	"resumetex/pkg/utils"
)

// DefaultMaxBodyBytes caps POST bodies when no limit is configured.
const DefaultMaxBodyBytes = 1 << 20

// RequestValidation assigns a request id (reusing a well-formed incoming
// X-Request-ID) and rejects oversized POST bodies.
func RequestValidation(maxBodyBytes int64) echo.MiddlewareFunc {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := c.Request().Header.Get(echo.HeaderXRequestID)
			if !validation.RequestIDPattern.MatchString(requestID) {
				requestID = utils.GenerateRequestID()
			}
			c.Set("request_id", requestID)
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)
			c.SetRequest(c.Request().WithContext(logging.ContextWithRequestID(c.Request().Context(), requestID)))

			if c.Request().Method == http.MethodPost {
				if c.Request().ContentLength > maxBodyBytes {
					return c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
						Error:     "request_too_large",
						Message:   "Request body too large",
						RequestID: requestID,
						Timestamp: time.Now(),
					})
				}
				c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, maxBodyBytes)
			}

			return next(c)
		}
	}
}
