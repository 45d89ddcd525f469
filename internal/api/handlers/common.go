package handlers

import (
	"time"

	"github.com/labstack/echo/v4"

	"resumetex/internal/api/validation"
	"resumetex/pkg/models"
	"resumetex/pkg/utils"
)

var requestValidator = validation.New()

// requestID returns the id set by the request middleware, generating one
// when the handler runs without it.
func requestID(c echo.Context) string {
	if id, ok := c.Get("request_id").(string); ok && id != "" {
		return id
	}
	return utils.GenerateRequestID()
}

func errorJSON(c echo.Context, code int, kind, message, reqID string) error {
	return c.JSON(code, models.ErrorResponse{
		Error:     kind,
		Message:   message,
		RequestID: reqID,
		Timestamp: time.Now(),
	})
}

// customErrorJSON renders err with its own status code.
func customErrorJSON(c echo.Context, kind string, err *utils.CustomError, reqID string) error {
	return errorJSON(c, err.Code, kind, err.Error(), reqID)
}
