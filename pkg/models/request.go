package models

// GenerateRequest is the payload of POST /api/v1/resume/generate.
type GenerateRequest struct {
	JobDescription string `json:"job_description" validate:"required,min=50,max=50000"`
	MasterResume   string `json:"master_resume" validate:"required,min=100,max=100000"`
	// RequestID lets the caller pick the id used for progress streaming.
	RequestID string `json:"request_id,omitempty" validate:"omitempty,request_id"`
}

// CompileRequest is the payload of POST /api/v1/latex/compile.
type CompileRequest struct {
	Latex         string `json:"latex" validate:"required,latex_document"`
	EnforceBudget bool   `json:"enforce_budget,omitempty"`
	RequestID     string `json:"request_id,omitempty" validate:"omitempty,request_id"`
}

// SanitizeRequest is the payload of POST /api/v1/latex/sanitize.
type SanitizeRequest struct {
	Latex string `json:"latex" validate:"required"`
}
