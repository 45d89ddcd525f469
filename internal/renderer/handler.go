// Package renderer is the HTTP front of the standalone typesetting service
// used as the remote compile backend.
package renderer

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"resumetex/internal/latex"
	"resumetex/internal/logging"
)

// maxSourceBytes caps LaTeX accepted through POST.
const maxSourceBytes = 500_000

// Compiler is the typesetting backend behind the service.
type Compiler interface {
	Compile(ctx context.Context, doc string) (*latex.CompileResult, error)
}

// Options bound incoming requests.
type Options struct {
	MaxURIBytes  int
	MaxBodyBytes int64
}

type compileRequest struct {
	Latex string `json:"latex"`
}

// NewHandler serves GET /compile?text=, POST /compile and GET /health.
// Sources are checked against the denylist before they reach the engine.
func NewHandler(compiler Compiler, opts Options) http.Handler {
	if opts.MaxURIBytes <= 0 {
		opts.MaxURIBytes = 8192
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(uriLimit(opts.MaxURIBytes))
	e.Use(middleware.BodyLimit(strconv.FormatInt(opts.MaxBodyBytes, 10)))

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/compile", func(c echo.Context) error {
		return compile(c, compiler, c.QueryParam("text"))
	})
	e.POST("/compile", func(c echo.Context) error {
		var req compileRequest
		if err := c.Bind(&req); err != nil {
			return c.String(http.StatusBadRequest, "invalid json: "+err.Error())
		}
		return compile(c, compiler, req.Latex)
	})
	return e
}

// uriLimit answers 414 so callers can fall back to a local engine.
func uriLimit(max int) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if len(c.Request().RequestURI) > max {
				return c.String(http.StatusRequestURITooLong, "request uri too long")
			}
			return next(c)
		}
	}
}

func compile(c echo.Context, compiler Compiler, doc string) error {
	logger := logging.GetGlobalLogger()

	if strings.TrimSpace(doc) == "" {
		return c.String(http.StatusBadRequest, "latex is required")
	}
	if len(doc) > maxSourceBytes {
		return c.String(http.StatusRequestEntityTooLarge, "latex input too large")
	}
	if err := latex.ValidateSource(doc); err != nil {
		logger.Warn("Rejected unsafe LaTeX", map[string]interface{}{
			"client_ip": c.RealIP(),
			"error":     err.Error(),
		})
		return c.String(http.StatusBadRequest, "latex rejected: "+err.Error())
	}

	res, err := compiler.Compile(c.Request().Context(), doc)
	if err != nil {
		var compileErr *latex.CompilationError
		var unavailable *latex.BackendUnavailableError
		switch {
		case errors.As(err, &compileErr):
			return c.String(http.StatusBadRequest, compileErr.DiagnosticLog)
		case errors.As(err, &unavailable):
			logger.Error("LaTeX engine unavailable", map[string]interface{}{"error": err.Error()})
			return c.String(http.StatusServiceUnavailable, err.Error())
		default:
			return c.String(http.StatusInternalServerError, err.Error())
		}
	}

	c.Response().Header().Set("X-Page-Count", strconv.Itoa(res.PageCount))
	return c.Blob(http.StatusOK, "application/pdf", res.PDF)
}
