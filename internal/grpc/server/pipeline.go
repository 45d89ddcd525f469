package server

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"resumetex/internal/api/validation"
	"resumetex/internal/background"
	"resumetex/internal/latex"
	"resumetex/internal/logging"
	"resumetex/pkg/models"
	"resumetex/pkg/utils"
)

var requestValidator = validation.New()

// SubmitGeneration queues a generation task. Fields: jobDescription,
// masterResume and an optional requestId.
func (s *Server) SubmitGeneration(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := models.GenerateRequest{
		JobDescription: stringField(req, "jobDescription"),
		MasterResume:   stringField(req, "masterResume"),
		RequestID:      stringField(req, "requestId"),
	}
	if err := requestValidator.Struct(&in); err != nil {
		return nil, status.Error(codes.InvalidArgument, validation.Message(err))
	}
	if in.RequestID == "" {
		in.RequestID = utils.GenerateRequestID()
	}
	processID := utils.GenerateProcessID()

	err := s.taskManager.SubmitGenerateTask(ctx, processID, background.GenerateRequest{
		JobDescription: in.JobDescription,
		MasterResume:   in.MasterResume,
		RequestID:      in.RequestID,
	})
	if err != nil {
		return nil, taskError(err)
	}

	logging.GetGlobalLogger().WithContext(ctx).Info("Generation task submitted over gRPC", map[string]interface{}{
		"process_id":     processID,
		"job_request_id": in.RequestID,
	})

	return structpb.NewStruct(map[string]interface{}{
		"processId": processID,
		"requestId": in.RequestID,
		"status":    string(background.TaskStatusAccepted),
	})
}

// GetTask returns the stored task for processId.
func (s *Server) GetTask(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	processID := stringField(req, "processId")
	if processID == "" {
		return nil, status.Error(codes.InvalidArgument, "processId is required")
	}
	result, err := s.taskManager.GetTaskResult(ctx, processID)
	if err != nil {
		return nil, taskError(err)
	}
	return toStruct(result)
}

// SanitizeLatex runs the sanitizer over latex and reports what it changed.
func (s *Server) SanitizeLatex(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	doc := stringField(req, "latex")
	if strings.TrimSpace(doc) == "" {
		return nil, status.Error(codes.InvalidArgument, "latex is required")
	}
	out, attempts := latex.SanitizeWithReport(doc)
	fixes := make([]interface{}, 0, len(attempts))
	for _, a := range attempts {
		fixes = append(fixes, a.Description)
	}
	return structpb.NewStruct(map[string]interface{}{
		"latex":        out,
		"fixesApplied": fixes,
		"changed":      out != doc,
	})
}

// HealthCheck reports service status and uptime.
func (s *Server) HealthCheck(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	checks := map[string]interface{}{"grpc": "ok"}
	state := "healthy"
	if s.taskManager == nil || !s.taskManager.IsHealthy() {
		checks["workers"] = "unavailable"
		state = "degraded"
	} else {
		checks["workers"] = "ok"
	}
	if s.llm == nil || !s.llm.IsHealthy() {
		checks["llm"] = "unavailable"
		state = "degraded"
	} else {
		checks["llm"] = "ok"
	}
	return structpb.NewStruct(map[string]interface{}{
		"status":        state,
		"timestamp":     time.Now().Format(time.RFC3339),
		"version":       "1.0.0",
		"uptimeSeconds": int64(time.Since(s.started).Seconds()),
		"checks":        checks,
	})
}

func stringField(s *structpb.Struct, name string) string {
	if s == nil {
		return ""
	}
	if v, ok := s.Fields[name]; ok {
		return v.GetStringValue()
	}
	return ""
}

// toStruct converts v to a Struct through its JSON form.
func toStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return structpb.NewStruct(m)
}

func taskError(err error) error {
	switch {
	case errors.Is(err, background.ErrTaskNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, background.ErrQueueFull):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, background.ErrNotRunning):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, background.ErrDuplicateTask):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
