// Package pipeline turns generated LaTeX into a PDF within a page budget:
// sanitize, compile, repair on failure, and ask the model to compress when
// the result runs long.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"resumetex/internal/config"
	"resumetex/internal/latex"
	"resumetex/internal/logging"
	"resumetex/internal/logging/types"
	"resumetex/internal/progress"
)

// Generator is the generative model behind the pipeline.
type Generator interface {
	// Generate returns the raw model response for a tailored resume.
	Generate(ctx context.Context, jobDescription, masterResume string) (string, error)
	// Compress returns the raw model response for a shortened document.
	Compress(ctx context.Context, document string, pageCount, pageBudget int) (string, error)
}

// Compiler typesets a document; *latex.Compiler satisfies it.
type Compiler interface {
	Compile(ctx context.Context, doc string) (*latex.CompileResult, error)
}

// Config bounds a run.
type Config struct {
	PageBudget           int
	MaxRetries           int
	MaxCompressionRounds int
}

// DefaultConfig is a two-page budget with two repair retries and one
// compression round.
func DefaultConfig() Config {
	return Config{PageBudget: 2, MaxRetries: 2, MaxCompressionRounds: 1}
}

// ConfigFrom reads the pipeline section of the application config.
func ConfigFrom(cfg *config.Config) Config {
	c := Config{
		PageBudget:           cfg.Pipeline.PageBudget,
		MaxRetries:           cfg.Pipeline.MaxRetries,
		MaxCompressionRounds: cfg.Pipeline.MaxCompressionRounds,
	}
	if c.PageBudget <= 0 {
		c.PageBudget = DefaultConfig().PageBudget
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.MaxCompressionRounds < 0 {
		c.MaxCompressionRounds = 0
	}
	return c
}

// Request is one generation job.
type Request struct {
	JobDescription string
	MasterResume   string
	RequestID      string
}

// FinishOptions control Finish, which starts from an existing document.
type FinishOptions struct {
	// EnforceBudget compresses over-budget documents and fails with
	// *PageBudgetError when compression runs out. Without it any page count
	// is accepted.
	EnforceBudget bool
	// Validate rejects sources using forbidden TeX constructs before
	// compiling.
	Validate bool
}

// Stage percentages reported with progress events.
const (
	pctReceived     = 5
	pctLLMStart     = 10
	pctLLMDone      = 45
	pctCompileStart = 55
	pctCompilePass  = 80
	pctRefineStart  = 85
	pctRefineDone   = 90
	pctDone         = 100
)

// Pipeline is safe for concurrent runs; all per-request state lives in a
// State value owned by the run.
type Pipeline struct {
	cfg       Config
	generator Generator
	compiler  Compiler
	publisher progress.Publisher
	eta       *ETAEstimator
	logger    types.Logger
	now       func() time.Time
}

// New builds a pipeline. A nil publisher discards events and a nil
// estimator gets a fresh one.
func New(cfg Config, generator Generator, compiler Compiler, publisher progress.Publisher, eta *ETAEstimator) *Pipeline {
	if publisher == nil {
		publisher = progress.Discard
	}
	if eta == nil {
		eta = NewETAEstimator(defaultETAAlpha)
	}
	return &Pipeline{
		cfg:       cfg,
		generator: generator,
		compiler:  compiler,
		publisher: publisher,
		eta:       eta,
		logger:    logging.GetGlobalLogger(),
		now:       time.Now,
	}
}

// Run generates a document for req and drives it to a PDF. The returned
// Outcome is never nil; on error it holds the best document available.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Outcome, error) {
	r := p.newRun(ctx, req.RequestID)
	r.emit(progress.StageReceived, pctReceived, "Request received", p.eta.Remaining(PhaseGenerate, PhaseCompile))

	if p.generator == nil {
		return r.fail(&GenerationError{Op: "generate", Err: errors.New("no generator configured")})
	}

	r.st.Status = StatusGenerating
	r.emit(progress.StageLLMStart, pctLLMStart, "Generating tailored resume", p.eta.Remaining(PhaseGenerate, PhaseCompile))

	started := p.now()
	raw, err := p.generator.Generate(ctx, req.JobDescription, req.MasterResume)
	if err != nil {
		return r.fail(&GenerationError{Op: "generate", Err: err})
	}
	p.eta.Observe(PhaseGenerate, p.now().Sub(started))

	doc, ok := latex.ExtractDocument(raw)
	if !ok {
		return r.fail(&GenerationFormatError{Preview: latex.Preview(raw, 500)})
	}
	r.emit(progress.StageLLMDone, pctLLMDone, "Resume draft generated", p.eta.Remaining(PhaseCompile))

	return r.finish(ctx, doc, FinishOptions{EnforceBudget: true})
}

// Finish drives an existing document through sanitize, compile and repair,
// skipping generation.
func (p *Pipeline) Finish(ctx context.Context, requestID, doc string, opts FinishOptions) (*Outcome, error) {
	r := p.newRun(ctx, requestID)
	r.emit(progress.StageReceived, pctReceived, "Document received", p.eta.Remaining(PhaseCompile))
	return r.finish(ctx, doc, opts)
}

type run struct {
	p       *Pipeline
	st      *State
	started time.Time
	percent int
	logger  types.Logger

	// last compile that came out over budget
	overBudget *latex.CompileResult
}

func (p *Pipeline) newRun(ctx context.Context, requestID string) *run {
	if requestID != "" {
		ctx = logging.ContextWithRequestID(ctx, requestID)
	}
	return &run{
		p:       p,
		st:      &State{RequestID: requestID},
		started: p.now(),
		logger:  p.logger.WithContext(ctx).WithField("component", "pipeline"),
	}
}

func (r *run) finish(ctx context.Context, doc string, opts FinishOptions) (*Outcome, error) {
	r.st.CurrentDocument = doc
	r.sanitize()

	if opts.Validate {
		if err := latex.ValidateSource(r.st.CurrentDocument); err != nil {
			return r.fail(err)
		}
	}

	for {
		res, err := r.compileWithRepair(ctx)
		if err != nil {
			return r.fail(err)
		}
		r.st.LastPageCount = res.PageCount

		if !opts.EnforceBudget || res.PageCount <= r.p.cfg.PageBudget {
			r.transition(StatusPageOK)
			out := r.outcome()
			out.PDF = res.PDF
			out.PageCount = res.PageCount
			out.Backend = res.Backend
			r.emit(progress.StageDone, pctDone, fmt.Sprintf("Resume ready (%d %s)", res.PageCount, pages(res.PageCount)), 0)
			r.logger.Info("Pipeline completed", map[string]interface{}{
				"pages":        res.PageCount,
				"attempts":     r.st.TotalAttempts,
				"fixes":        len(r.st.FixesApplied),
				"compressions": r.st.CompressionRounds,
				"backend":      res.Backend,
			})
			return out, nil
		}

		r.transition(StatusPageOver)
		if r.st.CompressionRounds >= r.p.cfg.MaxCompressionRounds || r.p.generator == nil {
			r.overBudget = res
			return r.fail(&PageBudgetError{
				Pages:    res.PageCount,
				Budget:   r.p.cfg.PageBudget,
				Attempts: r.st.CompressionRounds + 1,
			})
		}
		if err := r.compress(ctx, res.PageCount); err != nil {
			r.logger.Warn("Compression failed, keeping over-budget document", map[string]interface{}{
				"pages": res.PageCount,
				"error": err.Error(),
			})
			r.overBudget = res
			return r.fail(&PageBudgetError{
				Pages:    res.PageCount,
				Budget:   r.p.cfg.PageBudget,
				Attempts: r.st.CompressionRounds + 1,
				Cause:    err,
			})
		}
	}
}

// compileWithRepair compiles the current document, applying repair rules on
// failure until it compiles, no rule matches, or MaxRetries repairs have
// been spent since the last (re)generation.
func (r *run) compileWithRepair(ctx context.Context) (*latex.CompileResult, error) {
	for {
		r.transition(StatusCompiling)
		r.st.AttemptCount++
		r.st.TotalAttempts++

		msg := "Compiling PDF"
		if r.st.AttemptCount > 1 {
			msg = fmt.Sprintf("Recompiling after repair (attempt %d)", r.st.AttemptCount)
		}
		r.emit(progress.StageCompileStart, pctCompileStart+5*(r.st.AttemptCount-1), msg, r.p.eta.Remaining(PhaseCompile))

		started := r.p.now()
		res, err := r.p.compiler.Compile(ctx, r.st.CurrentDocument)
		r.p.eta.Observe(PhaseCompile, r.p.now().Sub(started))
		if err == nil {
			r.emit(progress.StageCompilePass, pctCompilePass, fmt.Sprintf("Compiled to %d %s", res.PageCount, pages(res.PageCount)), 0)
			return res, nil
		}

		var compileErr *latex.CompilationError
		if !errors.As(err, &compileErr) {
			return nil, err
		}
		r.st.LastDiagnostic = compileErr.DiagnosticLog

		if r.st.AttemptCount > r.p.cfg.MaxRetries {
			r.logger.Warn("Repair retries exhausted", map[string]interface{}{
				"attempts": r.st.AttemptCount,
				"error":    compileErr.Error(),
			})
			return nil, compileErr
		}

		fix := latex.AttemptFix(r.st.CurrentDocument, compileErr.DiagnosticLog)
		if !fix.Fixed {
			return nil, &NoAutoFixError{Description: fix.Description, Cause: compileErr}
		}

		r.logger.Info("Applied repair after compile failure", map[string]interface{}{
			"attempt": r.st.AttemptCount,
			"rules":   fix.Rules,
		})
		r.st.record(latex.RepairAttempt{Description: fix.Description, DocumentAfter: fix.Document})
		r.st.CurrentDocument = fix.Document
	}
}

func (r *run) compress(ctx context.Context, pageCount int) error {
	r.emit(progress.StageRefineStart, pctRefineStart,
		fmt.Sprintf("Condensing %d pages to fit %d", pageCount, r.p.cfg.PageBudget),
		r.p.eta.Remaining(PhaseRefine, PhaseCompile))

	started := r.p.now()
	raw, err := r.p.generator.Compress(ctx, r.st.CurrentDocument, pageCount, r.p.cfg.PageBudget)
	if err != nil {
		return &GenerationError{Op: "compress", Err: err}
	}
	r.p.eta.Observe(PhaseRefine, r.p.now().Sub(started))

	doc, ok := latex.ExtractDocument(raw)
	if !ok {
		return &GenerationFormatError{Preview: latex.Preview(raw, 500)}
	}

	r.st.CompressionRounds++
	r.st.AttemptCount = 0
	r.st.CurrentDocument = doc
	r.sanitize()
	r.emit(progress.StageRefineDone, pctRefineDone, "Condensed draft ready", r.p.eta.Remaining(PhaseCompile))
	return nil
}

func (r *run) sanitize() {
	r.transition(StatusSanitizing)
	doc, report := latex.SanitizeWithReport(r.st.CurrentDocument)
	r.st.CurrentDocument = doc
	r.st.record(report...)
	if len(report) > 0 {
		r.logger.Debug("Sanitizer repaired document", map[string]interface{}{
			"passes": len(report),
		})
	}
}

func (r *run) transition(to Status) {
	if r.st.Status == to {
		return
	}
	r.logger.Debug("Pipeline transition", map[string]interface{}{
		"from": string(r.st.Status),
		"to":   string(to),
	})
	r.st.Status = to
}

// fail builds the terminal outcome for err. Compile failures keep the
// most-repaired document and diagnostic so callers can offer the source.
func (r *run) fail(err error) (*Outcome, error) {
	var (
		compileErr *latex.CompilationError
		budgetErr  *PageBudgetError
	)
	switch {
	case errors.As(err, &compileErr):
		r.transition(StatusCompileFailed)
	case errors.As(err, &budgetErr):
		r.transition(StatusPageOver)
	default:
		r.transition(StatusFailed)
	}

	out := r.outcome()
	out.CompilationFailed = compileErr != nil
	if out.CompilationFailed && out.Diagnostic == "" {
		out.Diagnostic = compileErr.DiagnosticLog
	}
	if budgetErr != nil {
		out.PageCount = budgetErr.Pages
		if r.overBudget != nil {
			out.PDF = r.overBudget.PDF
			out.Backend = r.overBudget.Backend
		}
	}

	r.emit(progress.StageError, r.percent, err.Error(), 0)
	r.logger.Error("Pipeline failed", map[string]interface{}{
		"kind":     string(Kind(err)),
		"error":    err.Error(),
		"attempts": r.st.TotalAttempts,
		"fixes":    len(r.st.FixesApplied),
	})
	return out, err
}

func (r *run) outcome() *Outcome {
	return &Outcome{
		RequestID:         r.st.RequestID,
		Status:            r.st.Status,
		Latex:             r.st.CurrentDocument,
		Diagnostic:        r.st.LastDiagnostic,
		FixesApplied:      r.st.fixDescriptions(),
		Attempts:          r.st.TotalAttempts,
		CompressionRounds: r.st.CompressionRounds,
		Duration:          r.p.now().Sub(r.started),
	}
}

// emit publishes a progress event. Percentages never move backwards within
// a run.
func (r *run) emit(stage progress.Stage, pct int, msg string, eta int) {
	if pct < r.percent {
		pct = r.percent
	}
	r.percent = pct
	r.p.publisher.Publish(progress.Event{
		RequestID:  r.st.RequestID,
		Stage:      stage,
		Percent:    pct,
		Message:    msg,
		ETASeconds: eta,
		Timestamp:  r.p.now(),
	})
}

func pages(n int) string {
	if n == 1 {
		return "page"
	}
	return "pages"
}
