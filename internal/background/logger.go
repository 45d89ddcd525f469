package background

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"resumetex/internal/callback"
	"resumetex/internal/logging"
	"resumetex/internal/logging/types"
)

// Notifier delivers task completions to an external system.
type Notifier interface {
	SendGenerationCallback(ctx context.Context, data *callback.GenerationCallback) error
}

// TaskCompletionLogger handles structured logging for task completion
type TaskCompletionLogger struct {
	logger          types.Logger
	out             io.Writer
	mu              sync.Mutex
	notifier        Notifier
	callbackTimeout time.Duration
}

// NewTaskCompletionLogger creates a new task completion logger writing to stdout
func NewTaskCompletionLogger() *TaskCompletionLogger {
	return &TaskCompletionLogger{
		logger:          logging.GetGlobalLogger(),
		out:             os.Stdout,
		callbackTimeout: 30 * time.Second,
	}
}

// NewTaskCompletionLoggerWithCallback creates a new task completion logger
// that also notifies n. A nil notifier disables callbacks.
func NewTaskCompletionLoggerWithCallback(n Notifier, timeout time.Duration) *TaskCompletionLogger {
	l := NewTaskCompletionLogger()
	l.notifier = n
	if timeout > 0 {
		l.callbackTimeout = timeout
	}
	return l
}

// SetOutput redirects completion lines.
func (l *TaskCompletionLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	l.out = w
	l.mu.Unlock()
}

// TaskCompletionLog represents the structured log entry for task completion
type TaskCompletionLog struct {
	ProcessID      string                 `json:"processId"`
	RequestID      string                 `json:"requestId,omitempty"`
	Status         string                 `json:"status"`
	Data           *GenerateTaskData      `json:"data,omitempty"`
	Error          string                 `json:"error,omitempty"`
	ErrorCode      string                 `json:"errorCode,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
	Operation      string                 `json:"operation"`
	ProcessingTime string                 `json:"processing_time"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// CreateTaskCompletionLog creates a TaskCompletionLog from a TaskResult
func CreateTaskCompletionLog(result *TaskResult) *TaskCompletionLog {
	processingTime := "0s"
	if result.ProcessingTime != nil {
		processingTime = result.ProcessingTime.String()
	}

	entry := &TaskCompletionLog{
		ProcessID:      result.ProcessID,
		RequestID:      result.RequestID,
		Status:         string(result.Status),
		Error:          result.Error,
		ErrorCode:      result.ErrorCode,
		Timestamp:      time.Now(),
		Operation:      string(result.Type),
		ProcessingTime: processingTime,
		Metadata:       result.Metadata,
	}
	if result.Status != TaskStatusFailure {
		entry.Data = result.Data
	}
	return entry
}

// LogTaskCompletion writes one JSON line per finished task and, when a
// notifier is set, sends the completion callback. Callback failures are
// logged, not returned.
func (l *TaskCompletionLogger) LogTaskCompletion(result *TaskResult) error {
	jsonData, err := json.Marshal(CreateTaskCompletionLog(result))
	if err != nil {
		return fmt.Errorf("failed to marshal task completion log: %w", err)
	}

	l.mu.Lock()
	_, err = l.out.Write(append(jsonData, '\n'))
	l.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to write task completion log: %w", err)
	}

	var processingTime interface{} = "not set"
	if result.ProcessingTime != nil {
		processingTime = *result.ProcessingTime
	}
	l.logger.Info("Background task completed", map[string]interface{}{
		"process_id":      result.ProcessID,
		"status":          result.Status,
		"operation":       result.Type,
		"processing_time": processingTime,
	})

	if l.notifier != nil {
		ctx, cancel := context.WithTimeout(context.Background(), l.callbackTimeout)
		defer cancel()
		if err := l.notifier.SendGenerationCallback(ctx, callbackFromResult(result)); err != nil {
			l.logger.Error("Failed to send task callback", map[string]interface{}{
				"process_id": result.ProcessID,
				"error":      err.Error(),
			})
		}
	}

	return nil
}

func callbackFromResult(result *TaskResult) *callback.GenerationCallback {
	cb := &callback.GenerationCallback{
		ProcessID: result.ProcessID,
		RequestID: result.RequestID,
		Status:    string(result.Status),
		Timestamp: time.Now(),
		Operation: string(result.Type),
		Error:     result.Error,
		Metadata:  result.Metadata,
	}
	if result.ProcessingTime != nil {
		cb.ProcessingTime = *result.ProcessingTime
	}
	if result.Data != nil {
		cb.Data = result.Data
	}
	if result.ErrorCode != "" {
		md := make(map[string]interface{}, len(result.Metadata)+1)
		for k, v := range result.Metadata {
			md[k] = v
		}
		md["errorCode"] = result.ErrorCode
		cb.Metadata = md
	}
	return cb
}

// LogTaskStart logs when a task starts processing
func (l *TaskCompletionLogger) LogTaskStart(processID string, taskType TaskType) {
	l.logger.Info("Background task started", map[string]interface{}{
		"process_id": processID,
		"operation":  taskType,
		"status":     TaskStatusProcessing,
	})
}

// LogTaskAccepted logs when a task is accepted for processing
func (l *TaskCompletionLogger) LogTaskAccepted(processID string, taskType TaskType) {
	l.logger.Info("Background task accepted", map[string]interface{}{
		"process_id": processID,
		"operation":  taskType,
		"status":     TaskStatusAccepted,
	})
}

// LogTaskError logs task errors during processing
func (l *TaskCompletionLogger) LogTaskError(processID string, taskType TaskType, err error) {
	l.logger.Error("Background task failed", map[string]interface{}{
		"process_id": processID,
		"operation":  taskType,
		"status":     TaskStatusFailure,
		"error":      err.Error(),
	})
}

// LogTaskSuccess logs successful task completion
func (l *TaskCompletionLogger) LogTaskSuccess(processID string, taskType TaskType, processingTime time.Duration) {
	l.logger.Info("Background task completed successfully", map[string]interface{}{
		"process_id":      processID,
		"operation":       taskType,
		"status":          TaskStatusSuccess,
		"processing_time": processingTime,
	})
}
