package models

import (
	"time"
)

// AsyncStatus represents the status of an async operation
type AsyncStatus string

const (
	AsyncStatusAccepted   AsyncStatus = "ACCEPTED"
	AsyncStatusProcessing AsyncStatus = "PROCESSING"
	AsyncStatusSuccess    AsyncStatus = "SUCCESS"
	AsyncStatusFailure    AsyncStatus = "FAILURE"
)

// AsyncGenerateResponse represents the immediate response from the generate endpoint
type AsyncGenerateResponse struct {
	ProcessID   string      `json:"processId"`
	RequestID   string      `json:"requestId"`
	Status      AsyncStatus `json:"status"`
	Message     string      `json:"message"`
	StatusURL   string      `json:"statusUrl"`
	ProgressURL string      `json:"progressUrl"`
	Timestamp   time.Time   `json:"timestamp"`
}

// AsyncTaskStatusResponse represents the response for task status queries
type AsyncTaskStatusResponse struct {
	ProcessID      string                 `json:"processId"`
	RequestID      string                 `json:"requestId,omitempty"`
	Status         AsyncStatus            `json:"status"`
	Data           interface{}            `json:"data,omitempty"`
	Error          string                 `json:"error,omitempty"`
	ErrorCode      string                 `json:"errorCode,omitempty"`
	ArtifactURL    string                 `json:"artifactUrl,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
	CompletedAt    *time.Time             `json:"completedAt,omitempty"`
	ProcessingTime *time.Duration         `json:"processingTime,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// AsyncTaskListResponse represents the response for listing tasks
type AsyncTaskListResponse struct {
	Success bool                      `json:"success"`
	Tasks   []AsyncTaskStatusResponse `json:"tasks"`
	Count   int                       `json:"count"`
}

// AsyncErrorResponse represents an error response for async operations
type AsyncErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	ProcessID string    `json:"processId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CreateAsyncGenerateResponse creates a successful async generate response
func CreateAsyncGenerateResponse(processID, requestID string) *AsyncGenerateResponse {
	return &AsyncGenerateResponse{
		ProcessID:   processID,
		RequestID:   requestID,
		Status:      AsyncStatusAccepted,
		Message:     "Resume generation request accepted for background processing",
		StatusURL:   "/api/v1/tasks/" + processID,
		ProgressURL: "/api/v1/progress/" + requestID,
		Timestamp:   time.Now(),
	}
}

// CreateAsyncErrorResponse creates an error response for async operations
func CreateAsyncErrorResponse(error, message string, processID ...string) *AsyncErrorResponse {
	response := &AsyncErrorResponse{
		Error:     error,
		Message:   message,
		Timestamp: time.Now(),
	}

	if len(processID) > 0 && processID[0] != "" {
		response.ProcessID = processID[0]
	}

	return response
}

// IsCompleted checks if the async task has completed (success or failure)
func (r *AsyncTaskStatusResponse) IsCompleted() bool {
	return r.Status == AsyncStatusSuccess || r.Status == AsyncStatusFailure
}
