package pipeline

import (
	"context"
	"errors"
	"fmt"

	"resumetex/internal/latex"
)

// GenerationFormatError means the model's response held no complete LaTeX
// document. Preview is the start of the raw response.
type GenerationFormatError struct {
	Preview string
}

func (e *GenerationFormatError) Error() string {
	return "generated response does not contain a complete LaTeX document"
}

// GenerationError wraps a failed call to the generative model.
type GenerationError struct {
	Op  string // "generate" or "compress"
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s resume: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// NoAutoFixError means compilation failed with a diagnostic no repair rule
// recognizes. It unwraps to the underlying *latex.CompilationError.
type NoAutoFixError struct {
	Description string
	Cause       *latex.CompilationError
}

func (e *NoAutoFixError) Error() string {
	return e.Description
}

func (e *NoAutoFixError) Unwrap() error {
	if e.Cause == nil {
		return nil
	}
	return e.Cause
}

// PageBudgetError means the document compiled to more pages than the
// budget and could not be brought under it. Cause is set when a compression
// round itself failed; the over-budget document is still the result.
type PageBudgetError struct {
	Pages    int
	Budget   int
	Attempts int
	Cause    error
}

func (e *PageBudgetError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("exceeds page budget (%d pages, limit %d); compression failed: %v", e.Pages, e.Budget, e.Cause)
	}
	return fmt.Sprintf("still exceeds page budget (%d pages, limit %d) after %d attempts", e.Pages, e.Budget, e.Attempts)
}

func (e *PageBudgetError) Unwrap() error { return e.Cause }

// ErrorKind is a stable classification of terminal pipeline errors used by
// the API and the task store.
type ErrorKind string

const (
	KindNone               ErrorKind = ""
	KindGenerationFormat   ErrorKind = "GENERATION_FORMAT"
	KindGenerationFailed   ErrorKind = "GENERATION_FAILED"
	KindCompilationFailed  ErrorKind = "COMPILATION_FAILED"
	KindNoAutoFix          ErrorKind = "NO_AUTO_FIX"
	KindPageBudgetExceeded ErrorKind = "PAGE_BUDGET_EXCEEDED"
	KindBackendUnavailable ErrorKind = "BACKEND_UNAVAILABLE"
	KindUnsafeSource       ErrorKind = "UNSAFE_SOURCE"
	KindTimeout            ErrorKind = "TIMEOUT"
	KindInternal           ErrorKind = "INTERNAL"
)

// Kind classifies err. PageBudget is checked first since it may wrap a
// failed compression call, and NoAutoFix before CompilationFailed since a
// NoAutoFixError unwraps to the compile failure.
func Kind(err error) ErrorKind {
	var (
		formatErr  *GenerationFormatError
		genErr     *GenerationError
		noFixErr   *NoAutoFixError
		budgetErr  *PageBudgetError
		compileErr *latex.CompilationError
		backendErr *latex.BackendUnavailableError
		unsafeErr  *latex.UnsafeSourceError
	)

	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &budgetErr):
		return KindPageBudgetExceeded
	case errors.As(err, &formatErr):
		return KindGenerationFormat
	case errors.As(err, &noFixErr):
		return KindNoAutoFix
	case errors.As(err, &backendErr):
		return KindBackendUnavailable
	case errors.As(err, &unsafeErr):
		return KindUnsafeSource
	case errors.As(err, &compileErr):
		return KindCompilationFailed
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.As(err, &genErr):
		return KindGenerationFailed
	default:
		return KindInternal
	}
}

// Recoverable reports whether the caller still has a LaTeX document worth
// offering as a manual-repair download.
func Recoverable(err error) bool {
	switch Kind(err) {
	case KindCompilationFailed, KindNoAutoFix, KindPageBudgetExceeded:
		return true
	}
	return false
}
