package models

import "time"

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Uptime    time.Duration     `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// SanitizeResponse is the sanitized document and the passes that changed it.
type SanitizeResponse struct {
	Latex        string   `json:"latex"`
	FixesApplied []string `json:"fixes_applied"`
	Changed      bool     `json:"changed"`
	RequestID    string   `json:"request_id"`
}

// CompileFailureResponse is returned when a submitted document could not be
// compiled. Latex holds the most-repaired source for manual editing.
type CompileFailureResponse struct {
	Error        string    `json:"error"`
	Message      string    `json:"message"`
	ErrorCode    string    `json:"error_code"`
	Diagnostic   string    `json:"diagnostic,omitempty"`
	FixesApplied []string  `json:"fixes_applied"`
	Attempts     int       `json:"attempts"`
	PageCount    int       `json:"page_count,omitempty"`
	Latex        string    `json:"latex,omitempty"`
	RequestID    string    `json:"request_id"`
	Timestamp    time.Time `json:"timestamp"`
}

// StatusResponse extends the health response with runtime counters.
type StatusResponse struct {
	HealthResponse
	LLMProvider string      `json:"llm_provider"`
	LLMUsage    interface{} `json:"llm_usage"`
	Workers     interface{} `json:"workers"`
	GRPC        interface{} `json:"grpc,omitempty"`
	Cache       string      `json:"cache"`
	Artifacts   string      `json:"artifacts"`
}
