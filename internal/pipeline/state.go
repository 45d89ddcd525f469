package pipeline

import (
	"time"

	"resumetex/internal/latex"
)

// Status is the position of a run in the compile state machine.
type Status string

const (
	StatusGenerating    Status = "GENERATING"
	StatusSanitizing    Status = "SANITIZING"
	StatusCompiling     Status = "COMPILING"
	StatusPageOK        Status = "PAGE_OK"
	StatusPageOver      Status = "PAGE_OVER"
	StatusCompileFailed Status = "COMPILE_FAILED"
	StatusFailed        Status = "FAILED"
)

// State is owned by a single run and never shared between requests.
type State struct {
	RequestID       string
	Status          Status
	CurrentDocument string
	// AttemptCount is the number of compiles since the document was last
	// generated or compressed; repairs are bounded by it.
	AttemptCount      int
	TotalAttempts     int
	CompressionRounds int
	FixesApplied      []latex.RepairAttempt
	LastDiagnostic    string
	LastPageCount     int
}

func (s *State) record(attempts ...latex.RepairAttempt) {
	s.FixesApplied = append(s.FixesApplied, attempts...)
}

func (s *State) fixDescriptions() []string {
	out := make([]string, 0, len(s.FixesApplied))
	for _, f := range s.FixesApplied {
		out = append(out, f.Description)
	}
	return out
}

// Outcome is what a run hands back. On terminal failure it still carries the
// most-repaired document and everything that was tried.
type Outcome struct {
	RequestID         string        `json:"requestId,omitempty"`
	Status            Status        `json:"status"`
	PDF               []byte        `json:"-"`
	PageCount         int           `json:"pageCount"`
	Backend           string        `json:"backend,omitempty"`
	CompilationFailed bool          `json:"compilationFailed"`
	Latex             string        `json:"latex,omitempty"`
	Diagnostic        string        `json:"diagnostic,omitempty"`
	FixesApplied      []string      `json:"fixesApplied"`
	Attempts          int           `json:"attempts"`
	CompressionRounds int           `json:"compressionRounds"`
	Duration          time.Duration `json:"duration"`
}

// Succeeded reports whether a PDF within budget was produced.
func (o *Outcome) Succeeded() bool {
	return o != nil && o.Status == StatusPageOK && len(o.PDF) > 0
}
