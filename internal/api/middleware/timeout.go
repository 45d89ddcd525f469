package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// TimeoutConfig returns timeout middleware configuration
func TimeoutConfig(timeout time.Duration) echo.MiddlewareFunc {
	return middleware.ContextTimeoutWithConfig(middleware.ContextTimeoutConfig{
		Timeout: timeout,
	})
}

// SelectiveTimeoutConfig bounds request contexts: compile requests get the
// long timeout, everything else the default. Progress streams are exempt
// because they stay open for a whole generation.
func SelectiveTimeoutConfig(defaultTimeout, longTimeout time.Duration) echo.MiddlewareFunc {
	short := TimeoutConfig(defaultTimeout)
	long := TimeoutConfig(longTimeout)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		shortNext, longNext := short(next), long(next)
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			switch {
			case strings.HasPrefix(path, "/api/v1/progress/"):
				return next(c)
			case c.Request().Method == http.MethodPost && strings.HasPrefix(path, "/api/v1/latex/compile"):
				return longNext(c)
			default:
				return shortNext(c)
			}
		}
	}
}
