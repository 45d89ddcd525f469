package latex

import (
	"errors"
	"fmt"
)

// CompilationError means the engine ran and rejected the document.
type CompilationError struct {
	DiagnosticLog string
	RawError      string
	Backend       string
	TimedOut      bool
}

func (e *CompilationError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("latex compilation timed out (%s backend)", e.Backend)
	}
	if e.RawError != "" {
		return fmt.Sprintf("latex compilation failed (%s backend): %s", e.Backend, e.RawError)
	}
	return fmt.Sprintf("latex compilation failed (%s backend)", e.Backend)
}

// BackendUnavailableError means no backend could be reached or started.
// It points at operator configuration rather than the document.
type BackendUnavailableError struct {
	Backend string
	Err     error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("latex backend %s unavailable: %v", e.Backend, e.Err)
}

func (e *BackendUnavailableError) Unwrap() error { return e.Err }

// UnsafeSourceError is returned by ValidateSource.
type UnsafeSourceError struct {
	Construct string
}

func (e *UnsafeSourceError) Error() string {
	return fmt.Sprintf("latex source uses forbidden construct %q", e.Construct)
}

// errRemoteTooLarge signals a 414 from the remote renderer.
var errRemoteTooLarge = errors.New("remote renderer rejected payload as too large")
