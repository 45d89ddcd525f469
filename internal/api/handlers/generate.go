package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"resumetex/internal/api/validation"
	"resumetex/internal/background"
	"resumetex/internal/logging"
	"resumetex/pkg/models"
	"resumetex/pkg/utils"
)

// GenerateHandler handles POST /api/v1/resume/generate. The pipeline runs in
// the background; the response carries the ids for polling and streaming.
func GenerateHandler(taskManager background.TaskManager) echo.HandlerFunc {
	return func(c echo.Context) error {
		reqID := requestID(c)
		logger := logging.GetGlobalLogger().WithField("request_id", reqID)

		var req models.GenerateRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, models.CreateAsyncErrorResponse(
				"invalid_request",
				"Invalid request body: "+err.Error(),
			))
		}
		if err := requestValidator.Struct(&req); err != nil {
			logger.Warn("Generate request validation failed", map[string]interface{}{
				"error": err.Error(),
			})
			return c.JSON(http.StatusBadRequest, models.CreateAsyncErrorResponse(
				"validation_failed",
				validation.Message(err),
			))
		}

		// progress is published under the caller's id when one is given
		jobRequestID := utils.GetStringOrDefault(req.RequestID, reqID)
		processID := utils.GenerateProcessID()

		err := taskManager.SubmitGenerateTask(c.Request().Context(), processID, background.GenerateRequest{
			JobDescription: req.JobDescription,
			MasterResume:   req.MasterResume,
			RequestID:      jobRequestID,
		})
		if err != nil {
			logger.Error("Failed to submit generation task", map[string]interface{}{
				"process_id": processID,
				"error":      err.Error(),
			})
			code := http.StatusInternalServerError
			if errors.Is(err, background.ErrQueueFull) || errors.Is(err, background.ErrNotRunning) {
				code = http.StatusServiceUnavailable
			}
			return c.JSON(code, models.CreateAsyncErrorResponse(
				"task_submission_failed",
				err.Error(),
				processID,
			))
		}

		logger.Info("Generation task accepted", map[string]interface{}{
			"process_id":     processID,
			"job_request_id": jobRequestID,
		})
		return c.JSON(http.StatusAccepted, models.CreateAsyncGenerateResponse(processID, jobRequestID))
	}
}

// TaskStatusHandler handles GET /api/v1/tasks/:processId.
func TaskStatusHandler(taskManager background.TaskManager) echo.HandlerFunc {
	return func(c echo.Context) error {
		processID := c.Param("processId")
		result, err := taskManager.GetTaskResult(c.Request().Context(), processID)
		if err != nil {
			return taskLookupError(c, err, processID)
		}
		return c.JSON(http.StatusOK, taskResponse(result))
	}
}

// ListTasksHandler handles GET /api/v1/tasks.
func ListTasksHandler(taskManager background.TaskManager) echo.HandlerFunc {
	return func(c echo.Context) error {
		results, err := taskManager.ListTasks(c.Request().Context())
		if err != nil {
			return c.JSON(http.StatusInternalServerError, models.CreateAsyncErrorResponse("list_failed", err.Error()))
		}
		tasks := make([]models.AsyncTaskStatusResponse, 0, len(results))
		for _, r := range results {
			tasks = append(tasks, taskResponse(r))
		}
		return c.JSON(http.StatusOK, models.AsyncTaskListResponse{
			Success: true,
			Tasks:   tasks,
			Count:   len(tasks),
		})
	}
}

// TaskArtifactHandler handles GET /api/v1/tasks/:processId/artifact: the PDF,
// or the annotated LaTeX source when compilation could not finish.
func TaskArtifactHandler(taskManager background.TaskManager) echo.HandlerFunc {
	return func(c echo.Context) error {
		processID := c.Param("processId")
		result, err := taskManager.GetTaskResult(c.Request().Context(), processID)
		if err != nil {
			return taskLookupError(c, err, processID)
		}
		if !result.Status.Terminal() {
			return c.JSON(http.StatusConflict, models.CreateAsyncErrorResponse(
				"task_not_finished",
				"Task is still "+string(result.Status),
				processID,
			))
		}
		if result.Artifact == nil {
			return c.JSON(http.StatusNotFound, models.CreateAsyncErrorResponse(
				"artifact_not_found",
				"Task produced no artifact",
				processID,
			))
		}
		a := result.Artifact
		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+a.Name+`"`)
		if a.Location != "" {
			c.Response().Header().Set("X-Artifact-Location", a.Location)
		}
		return c.Blob(http.StatusOK, a.ContentType, a.Data)
	}
}

func taskLookupError(c echo.Context, err error, processID string) error {
	if errors.Is(err, background.ErrTaskNotFound) {
		return c.JSON(http.StatusNotFound, models.CreateAsyncErrorResponse(
			"task_not_found",
			"No task with this process id",
			processID,
		))
	}
	return c.JSON(http.StatusInternalServerError, models.CreateAsyncErrorResponse("lookup_failed", err.Error(), processID))
}

func taskResponse(r *background.TaskResult) models.AsyncTaskStatusResponse {
	resp := models.AsyncTaskStatusResponse{
		ProcessID:      r.ProcessID,
		RequestID:      r.RequestID,
		Status:         models.AsyncStatus(r.Status),
		Error:          r.Error,
		ErrorCode:      r.ErrorCode,
		CreatedAt:      r.CreatedAt,
		CompletedAt:    r.CompletedAt,
		ProcessingTime: r.ProcessingTime,
		Metadata:       r.Metadata,
	}
	if r.Data != nil {
		resp.Data = r.Data
	}
	if r.Artifact != nil {
		resp.ArtifactURL = "/api/v1/tasks/" + r.ProcessID + "/artifact"
	}
	return resp
}
