package background

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"resumetex/internal/artifacts"
	"resumetex/internal/cache"
	"resumetex/internal/logging"
	"resumetex/internal/logging/types"
	"resumetex/internal/pipeline"
	"resumetex/internal/progress"
)

// Runner is the part of the pipeline a generation task drives.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Outcome, error)
}

// GenerateRequest is the input of one generation task.
type GenerateRequest struct {
	JobDescription string
	MasterResume   string
	RequestID      string
}

// GenerateTaskData is the public result of a generation task.
type GenerateTaskData struct {
	PageCount         int      `json:"pageCount"`
	Backend           string   `json:"backend,omitempty"`
	CompilationFailed bool     `json:"compilationFailed"`
	Fallback          bool     `json:"fallback"`
	ErrorCode         string   `json:"errorCode,omitempty"`
	Reason            string   `json:"reason,omitempty"`
	Diagnostic        string   `json:"diagnostic,omitempty"`
	FixesApplied      []string `json:"fixesApplied"`
	Attempts          int      `json:"attempts"`
	CompressionRounds int      `json:"compressionRounds"`
	Cached            bool     `json:"cached"`
	ArtifactName      string   `json:"artifactName,omitempty"`
	ArtifactLocation  string   `json:"artifactLocation,omitempty"`
}

type runResult struct {
	outcome *pipeline.Outcome
	err     error
}

// Generator executes generation tasks. Identical inputs share one pipeline
// run while it is in flight, and successful results are cached.
type Generator struct {
	runner    Runner
	cache     cache.Cache
	store     artifacts.Store
	publisher progress.Publisher
	group     singleflight.Group
	logger    types.Logger
	now       func() time.Time
}

// NewGenerator wires a generator. A nil cache disables caching, a nil store
// keeps artifacts in memory only and a nil publisher discards events.
func NewGenerator(runner Runner, c cache.Cache, store artifacts.Store, publisher progress.Publisher) *Generator {
	if c == nil {
		c = cache.Noop{}
	}
	if publisher == nil {
		publisher = progress.Discard
	}
	return &Generator{
		runner:    runner,
		cache:     c,
		store:     store,
		publisher: publisher,
		logger:    logging.GetGlobalLogger(),
		now:       time.Now,
	}
}

// Execute runs one task. Compile and page-budget failures still succeed with
// an annotated .tex artifact; only failures with no usable document return
// an error.
func (g *Generator) Execute(ctx context.Context, processID string, req GenerateRequest) (*GenerateTaskData, *Artifact, error) {
	if req.RequestID != "" {
		ctx = logging.ContextWithRequestID(ctx, req.RequestID)
	}
	logger := g.logger.WithContext(ctx).WithField("process_id", processID)
	key := cache.Key(req.JobDescription, req.MasterResume)

	entry, hit, err := g.cache.Get(ctx, key)
	if err != nil {
		logger.Warn("Result cache lookup failed, generating", map[string]interface{}{
			"cache": g.cache.Name(),
			"error": err.Error(),
		})
	}
	if hit {
		logger.Info("Serving generation from cache", map[string]interface{}{
			"cache":      g.cache.Name(),
			"page_count": entry.PageCount,
		})
		g.publish(req.RequestID, progress.StageReceived, 5, "Request received")
		g.publish(req.RequestID, progress.StageDone, 100, "Resume ready (cached)")
		data := &GenerateTaskData{
			PageCount:    entry.PageCount,
			FixesApplied: entry.FixesApplied,
			Cached:       true,
		}
		return data, g.save(ctx, logger, processID, artifacts.KindResume, "pdf", artifacts.ContentTypePDF, entry.PDF, data), nil
	}

	v, _, shared := g.group.Do(key, func() (interface{}, error) {
		out, runErr := g.runner.Run(ctx, pipeline.Request{
			JobDescription: req.JobDescription,
			MasterResume:   req.MasterResume,
			RequestID:      req.RequestID,
		})
		return &runResult{outcome: out, err: runErr}, nil
	})
	res := v.(*runResult)
	out, runErr := res.outcome, res.err

	if shared && (out == nil || out.RequestID != req.RequestID) {
		// the run reported progress under another request id
		g.publish(req.RequestID, progress.StageReceived, 5, "Request received")
		if out.Succeeded() {
			g.publish(req.RequestID, progress.StageDone, 100, "Resume ready")
		} else if runErr != nil {
			g.publish(req.RequestID, progress.StageError, 100, runErr.Error())
		}
	}

	if runErr == nil && out.Succeeded() {
		data := dataFromOutcome(out)
		if err := g.cache.Set(ctx, key, &cache.Entry{
			PDF:          out.PDF,
			PageCount:    out.PageCount,
			Latex:        out.Latex,
			FixesApplied: out.FixesApplied,
			CreatedAt:    g.now(),
		}); err != nil {
			logger.Warn("Failed to cache generation result", map[string]interface{}{
				"cache": g.cache.Name(),
				"error": err.Error(),
			})
		}
		return data, g.save(ctx, logger, processID, artifacts.KindResume, "pdf", artifacts.ContentTypePDF, out.PDF, data), nil
	}

	if runErr == nil {
		runErr = errors.New("pipeline finished without a PDF")
	}
	if !pipeline.Recoverable(runErr) || out == nil || strings.TrimSpace(out.Latex) == "" {
		return nil, nil, runErr
	}

	data := dataFromOutcome(out)
	data.Fallback = true
	data.ErrorCode = string(pipeline.Kind(runErr))
	data.Reason = runErr.Error()

	source := artifacts.AnnotateFallback(out.Latex, runErr.Error(), out.Diagnostic, g.now())
	logger.Warn("Generation ended with a LaTeX fallback", map[string]interface{}{
		"kind":     data.ErrorCode,
		"attempts": out.Attempts,
	})
	return data, g.save(ctx, logger, processID, artifacts.KindFallback, "tex", artifacts.ContentTypeTeX, []byte(source), data), nil
}

// save persists data through the store. A store failure is logged; the
// artifact stays downloadable from memory.
func (g *Generator) save(ctx context.Context, logger types.Logger, processID, kind, ext, contentType string, body []byte, data *GenerateTaskData) *Artifact {
	name := artifacts.FileName(kind+"_"+shortID(processID), ext, g.now())
	a := &Artifact{Name: name, ContentType: contentType, Data: body}
	data.ArtifactName = name

	if g.store == nil {
		return a
	}
	location, err := g.store.Save(ctx, name, body, contentType)
	if err != nil {
		logger.Error("Failed to save artifact", map[string]interface{}{
			"store": g.store.Name(),
			"name":  name,
			"error": err.Error(),
		})
		return a
	}
	a.Location = location
	data.ArtifactLocation = location
	return a
}

func (g *Generator) publish(requestID string, stage progress.Stage, pct int, msg string) {
	if requestID == "" {
		return
	}
	g.publisher.Publish(progress.Event{
		RequestID: requestID,
		Stage:     stage,
		Percent:   pct,
		Message:   msg,
		Timestamp: g.now(),
	})
}

func dataFromOutcome(out *pipeline.Outcome) *GenerateTaskData {
	return &GenerateTaskData{
		PageCount:         out.PageCount,
		Backend:           out.Backend,
		CompilationFailed: out.CompilationFailed,
		Diagnostic:        out.Diagnostic,
		FixesApplied:      out.FixesApplied,
		Attempts:          out.Attempts,
		CompressionRounds: out.CompressionRounds,
	}
}

// shortID keeps the last 8 alphanumeric characters of id.
func shortID(id string) string {
	var b strings.Builder
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if len(s) > 8 {
		s = s[len(s)-8:]
	}
	return s
}
