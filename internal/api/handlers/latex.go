package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"resumetex/internal/api/validation"
	"resumetex/internal/latex"
	"resumetex/internal/logging"
	"resumetex/internal/pipeline"
	"resumetex/pkg/models"
	"resumetex/pkg/utils"
)

// Finisher drives an existing document to a PDF; *pipeline.Pipeline
// satisfies it.
type Finisher interface {
	Finish(ctx context.Context, requestID, doc string, opts pipeline.FinishOptions) (*pipeline.Outcome, error)
}

// CompileHandler handles POST /api/v1/latex/compile. Success returns the PDF
// with its page count in X-Page-Count. Compile failures return 422 with the
// most-repaired source so the caller can fix it by hand.
func CompileHandler(finisher Finisher) echo.HandlerFunc {
	return func(c echo.Context) error {
		reqID := requestID(c)
		logger := logging.GetGlobalLogger().WithField("request_id", reqID)

		var req models.CompileRequest
		if err := c.Bind(&req); err != nil {
			return customErrorJSON(c, "invalid_request", utils.NewBadRequestError("Invalid request body: "+err.Error()), reqID)
		}
		if err := requestValidator.Struct(&req); err != nil {
			return customErrorJSON(c, "validation_failed", utils.NewValidationError(validation.Message(err)), reqID)
		}
		runID := utils.GetStringOrDefault(req.RequestID, reqID)

		out, err := finisher.Finish(c.Request().Context(), runID, req.Latex, pipeline.FinishOptions{
			EnforceBudget: req.EnforceBudget,
			Validate:      true,
		})
		if err == nil && out != nil && len(out.PDF) > 0 {
			h := c.Response().Header()
			h.Set("X-Page-Count", strconv.Itoa(out.PageCount))
			h.Set("X-Compile-Backend", out.Backend)
			h.Set("X-Fixes-Applied", strconv.Itoa(len(out.FixesApplied)))
			h.Set(echo.HeaderContentDisposition, `inline; filename="resume.pdf"`)
			return c.Blob(http.StatusOK, "application/pdf", out.PDF)
		}
		if err == nil {
			err = errors.New("compilation produced no PDF")
		}

		kind := pipeline.Kind(err)
		logger.Warn("Compile request failed", map[string]interface{}{
			"kind":  kind,
			"error": err.Error(),
		})

		switch {
		case kind == pipeline.KindUnsafeSource:
			var unsafe *latex.UnsafeSourceError
			detail := err.Error()
			if errors.As(err, &unsafe) {
				detail = unsafe.Construct
			}
			return customErrorJSON(c, "unsafe_source", utils.NewUnsafeSourceError(detail), reqID)
		case kind == pipeline.KindBackendUnavailable:
			return customErrorJSON(c, "backend_unavailable", utils.NewUnavailableError(err.Error()), reqID)
		case kind == pipeline.KindTimeout:
			return customErrorJSON(c, "timeout", utils.NewTimeoutError(err.Error()), reqID)
		case pipeline.Recoverable(err):
			resp := models.CompileFailureResponse{
				Error:     "compilation_failed",
				Message:   err.Error(),
				ErrorCode: string(kind),
				RequestID: reqID,
				Timestamp: time.Now(),
			}
			if out != nil {
				resp.Diagnostic = out.Diagnostic
				resp.FixesApplied = out.FixesApplied
				resp.Attempts = out.Attempts
				resp.PageCount = out.PageCount
				resp.Latex = out.Latex
			}
			return c.JSON(http.StatusUnprocessableEntity, resp)
		default:
			return customErrorJSON(c, "internal_error", utils.NewInternalServerError(err.Error()), reqID)
		}
	}
}

// SanitizeHandler handles POST /api/v1/latex/sanitize.
func SanitizeHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		reqID := requestID(c)

		var req models.SanitizeRequest
		if err := c.Bind(&req); err != nil {
			return customErrorJSON(c, "invalid_request", utils.NewBadRequestError("Invalid request body: "+err.Error()), reqID)
		}
		if err := requestValidator.Struct(&req); err != nil {
			return customErrorJSON(c, "validation_failed", utils.NewValidationError(validation.Message(err)), reqID)
		}

		out, attempts := latex.SanitizeWithReport(req.Latex)
		fixes := make([]string, 0, len(attempts))
		for _, a := range attempts {
			fixes = append(fixes, a.Description)
		}
		return c.JSON(http.StatusOK, models.SanitizeResponse{
			Latex:        out,
			FixesApplied: fixes,
			Changed:      out != req.Latex,
			RequestID:    reqID,
		})
	}
}
