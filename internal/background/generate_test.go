package background

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"resumetex/internal/artifacts"
	"resumetex/internal/cache"
	"resumetex/internal/latex"
	"resumetex/internal/pipeline"
	"resumetex/internal/progress"
)

type stubRunner struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
	run     func(req pipeline.Request) (*pipeline.Outcome, error)
}

func (s *stubRunner) Run(ctx context.Context, req pipeline.Request) (*pipeline.Outcome, error) {
	s.calls.Add(1)
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return &pipeline.Outcome{RequestID: req.RequestID, Status: pipeline.StatusFailed}, ctx.Err()
		}
	}
	return s.run(req)
}

func okOutcome(req pipeline.Request) (*pipeline.Outcome, error) {
	return &pipeline.Outcome{
		RequestID:    req.RequestID,
		Status:       pipeline.StatusPageOK,
		PDF:          []byte("%PDF-1.5 stub"),
		PageCount:    1,
		Backend:      "local",
		Latex:        `\documentclass{article}\begin{document}x\end{document}`,
		FixesApplied: []string{"escaped bare &"},
		Attempts:     1,
	}, nil
}

type eventLog struct {
	mu     sync.Mutex
	events []progress.Event
}

func (l *eventLog) Publish(ev progress.Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) stages(requestID string) []progress.Stage {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []progress.Stage
	for _, ev := range l.events {
		if ev.RequestID == requestID {
			out = append(out, ev.Stage)
		}
	}
	return out
}

func newTestGenerator(t *testing.T, r Runner, c cache.Cache, pub progress.Publisher) (*Generator, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := artifacts.NewLocal(dir)
	if err != nil {
		t.Fatal(err)
	}
	g := NewGenerator(r, c, store, pub)
	g.now = func() time.Time { return time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC) }
	return g, dir
}

func TestGeneratorSuccessSavesPDFAndCaches(t *testing.T) {
	r := &stubRunner{run: okOutcome}
	c := cache.NewMemory(8, time.Hour)
	g, dir := newTestGenerator(t, r, c, nil)

	data, artifact, err := g.Execute(context.Background(), "proc-abc12345", GenerateRequest{
		JobDescription: "jd", MasterResume: "resume", RequestID: "req-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if data.PageCount != 1 || data.Fallback || data.Cached {
		t.Errorf("data = %+v", data)
	}
	if artifact.ContentType != artifacts.ContentTypePDF {
		t.Errorf("content type = %s", artifact.ContentType)
	}
	if artifact.Name != "resume_abc12345_20250301T093000.pdf" {
		t.Errorf("artifact name = %s", artifact.Name)
	}
	body, err := os.ReadFile(filepath.Join(dir, artifact.Name))
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "%PDF-1.5 stub" {
		t.Errorf("saved body = %q", body)
	}
	if data.ArtifactLocation == "" || artifact.Location != data.ArtifactLocation {
		t.Errorf("location = %q / %q", artifact.Location, data.ArtifactLocation)
	}
	if c.Len() != 1 {
		t.Errorf("cache entries = %d", c.Len())
	}
}

func TestGeneratorServesCacheHit(t *testing.T) {
	r := &stubRunner{run: okOutcome}
	c := cache.NewMemory(8, time.Hour)
	events := &eventLog{}
	g, _ := newTestGenerator(t, r, c, events)

	req := GenerateRequest{JobDescription: "jd", MasterResume: "resume", RequestID: "req-1"}
	if _, _, err := g.Execute(context.Background(), "p1", req); err != nil {
		t.Fatal(err)
	}
	req.RequestID = "req-2"
	data, artifact, err := g.Execute(context.Background(), "p2", req)
	if err != nil {
		t.Fatal(err)
	}
	if r.calls.Load() != 1 {
		t.Errorf("runner calls = %d, want 1", r.calls.Load())
	}
	if !data.Cached || string(artifact.Data) != "%PDF-1.5 stub" {
		t.Errorf("data = %+v", data)
	}
	got := events.stages("req-2")
	if len(got) != 2 || got[0] != progress.StageReceived || got[1] != progress.StageDone {
		t.Errorf("cached request stages = %v", got)
	}
}

func TestGeneratorFallbackOnCompileFailure(t *testing.T) {
	r := &stubRunner{run: func(req pipeline.Request) (*pipeline.Outcome, error) {
		return &pipeline.Outcome{
				RequestID:         req.RequestID,
				Status:            pipeline.StatusCompileFailed,
				CompilationFailed: true,
				Latex:             "\\documentclass{article}\n\\begin{document}\n\\foo\n\\end{document}",
				Diagnostic:        "! Undefined control sequence.",
				Attempts:          3,
			}, &pipeline.NoAutoFixError{Cause: &latex.CompilationError{
				DiagnosticLog: "! Undefined control sequence.",
			}}
	}}
	c := cache.NewMemory(8, time.Hour)
	g, dir := newTestGenerator(t, r, c, nil)

	data, artifact, err := g.Execute(context.Background(), "p1", GenerateRequest{JobDescription: "jd", MasterResume: "r"})
	if err != nil {
		t.Fatalf("recoverable failure returned error: %v", err)
	}
	if !data.Fallback || data.ErrorCode != string(pipeline.KindNoAutoFix) || !data.CompilationFailed {
		t.Errorf("data = %+v", data)
	}
	if artifact.ContentType != artifacts.ContentTypeTeX || !strings.HasPrefix(artifact.Name, artifacts.KindFallback+"_") {
		t.Errorf("artifact = %s (%s)", artifact.Name, artifact.ContentType)
	}
	body, err := os.ReadFile(filepath.Join(dir, artifact.Name))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(body), "%") || !strings.Contains(string(body), `\foo`) {
		t.Errorf("fallback body = %q", body)
	}
	if c.Len() != 0 {
		t.Error("failed generation was cached")
	}
}

func TestGeneratorPageBudgetFallback(t *testing.T) {
	r := &stubRunner{run: func(req pipeline.Request) (*pipeline.Outcome, error) {
		return &pipeline.Outcome{
			Status:            pipeline.StatusPageOver,
			PDF:               []byte("%PDF"),
			PageCount:         3,
			Latex:             `\documentclass{article}`,
			CompressionRounds: 1,
		}, &pipeline.PageBudgetError{Pages: 3, Budget: 2, Attempts: 2}
	}}
	g, _ := newTestGenerator(t, r, nil, nil)

	data, _, err := g.Execute(context.Background(), "p1", GenerateRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if !data.Fallback || data.ErrorCode != string(pipeline.KindPageBudgetExceeded) || data.PageCount != 3 {
		t.Errorf("data = %+v", data)
	}
}

func TestGeneratorNonRecoverableFails(t *testing.T) {
	r := &stubRunner{run: func(req pipeline.Request) (*pipeline.Outcome, error) {
		return &pipeline.Outcome{Status: pipeline.StatusFailed},
			&pipeline.GenerationError{Op: "generate", Err: errors.New("rate limited")}
	}}
	g, _ := newTestGenerator(t, r, nil, nil)

	data, artifact, err := g.Execute(context.Background(), "p1", GenerateRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
	if pipeline.Kind(err) != pipeline.KindGenerationFailed {
		t.Errorf("kind = %s", pipeline.Kind(err))
	}
	if data != nil || artifact != nil {
		t.Error("failed generation produced a result")
	}
}

func TestGeneratorSharesInFlightRun(t *testing.T) {
	r := &stubRunner{
		run:     okOutcome,
		entered: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	events := &eventLog{}
	g, _ := newTestGenerator(t, r, nil, events)

	var wg sync.WaitGroup
	results := make([]*GenerateTaskData, 2)
	errs := make([]error, 2)
	run := func(i int, requestID string) {
		defer wg.Done()
		results[i], _, errs[i] = g.Execute(context.Background(), "p-"+requestID, GenerateRequest{
			JobDescription: "same jd", MasterResume: "same resume", RequestID: requestID,
		})
	}

	wg.Add(1)
	go run(0, "leader")
	<-r.entered
	wg.Add(1)
	go run(1, "follower")
	time.Sleep(50 * time.Millisecond)
	close(r.release)
	wg.Wait()

	if r.calls.Load() != 1 {
		t.Fatalf("runner calls = %d, want 1", r.calls.Load())
	}
	for i, err := range errs {
		if err != nil || results[i].PageCount != 1 {
			t.Errorf("result %d = %+v, %v", i, results[i], err)
		}
	}
	got := events.stages("follower")
	if len(got) != 2 || got[1] != progress.StageDone {
		t.Errorf("follower stages = %v", got)
	}
}

func TestShortID(t *testing.T) {
	tests := map[string]string{
		"":                                      "",
		"abc":                                   "abc",
		"proc_7f3e9a21-4b7c-4d2e-9f0a-1c2b3d4e": "1c2b3d4e",
	}
	for in, want := range tests {
		if got := shortID(in); got != want {
			t.Errorf("shortID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGeneratorCompressionFailureFallsBack(t *testing.T) {
	r := &stubRunner{run: func(req pipeline.Request) (*pipeline.Outcome, error) {
		return &pipeline.Outcome{
				Status:    pipeline.StatusPageOver,
				PDF:       []byte("%PDF"),
				PageCount: 3,
				Latex:     `\documentclass{article}\begin{document}long\end{document}`,
			}, &pipeline.PageBudgetError{
				Pages: 3, Budget: 2, Attempts: 1,
				Cause: &pipeline.GenerationError{Op: "compress", Err: errors.New("model overloaded")},
			}
	}}
	g, _ := newTestGenerator(t, r, nil, nil)

	data, artifact, err := g.Execute(context.Background(), "p1", GenerateRequest{})
	if err != nil {
		t.Fatalf("compression failure lost the document: %v", err)
	}
	if !data.Fallback || data.ErrorCode != string(pipeline.KindPageBudgetExceeded) {
		t.Errorf("data = %+v", data)
	}
	if !strings.Contains(data.Reason, "model overloaded") {
		t.Errorf("reason = %q", data.Reason)
	}
	if artifact == nil || !strings.Contains(string(artifact.Data), "long") {
		t.Errorf("artifact = %+v", artifact)
	}
}
