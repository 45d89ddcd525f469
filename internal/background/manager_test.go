package background

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"resumetex/internal/callback"
	"resumetex/internal/config"
	"resumetex/internal/pipeline"
)

type recordingNotifier struct {
	mu    sync.Mutex
	calls []*callback.GenerationCallback
}

func (n *recordingNotifier) SendGenerationCallback(_ context.Context, data *callback.GenerationCallback) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, data)
	return nil
}

func (n *recordingNotifier) last() *callback.GenerationCallback {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.calls) == 0 {
		return nil
	}
	return n.calls[len(n.calls)-1]
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func startManager(t *testing.T, r Runner, workers, queue int) (*TaskManagerImpl, *recordingNotifier, *syncBuffer) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Workers.PoolSize = workers
	cfg.Workers.QueueSize = queue
	cfg.BackgroundTasks.TaskTimeout = 5 * time.Second

	notifier := &recordingNotifier{}
	out := &syncBuffer{}
	completion := NewTaskCompletionLoggerWithCallback(notifier, time.Second)
	completion.SetOutput(out)

	g, _ := newTestGenerator(t, r, nil, nil)
	tm := NewTaskManager(cfg, g, completion)
	if err := tm.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = tm.Stop(ctx)
	})
	return tm, notifier, out
}

func waitTerminal(t *testing.T, tm *TaskManagerImpl, processID string) *TaskResult {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		result, err := tm.GetTaskResult(context.Background(), processID)
		if err == nil && result.Status.Terminal() {
			return result
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("task %s did not finish", processID)
	return nil
}

func TestTaskManagerRunsGeneration(t *testing.T) {
	tm, notifier, out := startManager(t, &stubRunner{run: okOutcome}, 2, 4)

	err := tm.SubmitGenerateTask(context.Background(), "proc-1", GenerateRequest{
		JobDescription: "jd", MasterResume: "resume", RequestID: "req-1",
	})
	if err != nil {
		t.Fatal(err)
	}

	result := waitTerminal(t, tm, "proc-1")
	if result.Status != TaskStatusSuccess {
		t.Fatalf("status = %s (%s)", result.Status, result.Error)
	}
	if result.Data == nil || result.Data.PageCount != 1 || result.Artifact == nil {
		t.Errorf("result = %+v", result)
	}
	if result.CompletedAt == nil || result.ProcessingTime == nil {
		t.Error("completion timestamps not set")
	}

	// completion logging runs after the store update
	deadline := time.Now().Add(time.Second)
	for notifier.last() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cb := notifier.last()
	if cb == nil || cb.ProcessID != "proc-1" || cb.Status != string(TaskStatusSuccess) || cb.RequestID != "req-1" {
		t.Fatalf("callback = %+v", cb)
	}

	var line TaskCompletionLog
	if err := json.Unmarshal(bytes.TrimSpace([]byte(out.String())), &line); err != nil {
		t.Fatalf("completion line %q: %v", out.String(), err)
	}
	if line.ProcessID != "proc-1" || line.Operation != string(TaskTypeGenerate) || line.Data == nil {
		t.Errorf("completion line = %+v", line)
	}
}

func TestTaskManagerRecordsFailureKind(t *testing.T) {
	r := &stubRunner{run: func(pipeline.Request) (*pipeline.Outcome, error) {
		return &pipeline.Outcome{Status: pipeline.StatusFailed}, &pipeline.GenerationFormatError{}
	}}
	tm, notifier, _ := startManager(t, r, 1, 1)

	if err := tm.SubmitGenerateTask(context.Background(), "proc-f", GenerateRequest{}); err != nil {
		t.Fatal(err)
	}
	result := waitTerminal(t, tm, "proc-f")
	if result.Status != TaskStatusFailure {
		t.Fatalf("status = %s", result.Status)
	}
	if result.ErrorCode != string(pipeline.KindGenerationFormat) || result.Error == "" {
		t.Errorf("error = %q code = %q", result.Error, result.ErrorCode)
	}

	deadline := time.Now().Add(time.Second)
	for notifier.last() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cb := notifier.last()
	if cb == nil || cb.Status != string(TaskStatusFailure) || cb.Metadata["errorCode"] != string(pipeline.KindGenerationFormat) {
		t.Errorf("callback = %+v", cb)
	}
}

func TestTaskManagerQueueFull(t *testing.T) {
	r := &stubRunner{
		run:     okOutcome,
		entered: make(chan struct{}, 4),
		release: make(chan struct{}),
	}
	tm, _, _ := startManager(t, r, 1, 1)
	defer close(r.release)

	ctx := context.Background()
	if err := tm.SubmitGenerateTask(ctx, "a", GenerateRequest{JobDescription: "a"}); err != nil {
		t.Fatal(err)
	}
	<-r.entered
	if err := tm.SubmitGenerateTask(ctx, "b", GenerateRequest{JobDescription: "b"}); err != nil {
		t.Fatal(err)
	}
	err := tm.SubmitGenerateTask(ctx, "c", GenerateRequest{JobDescription: "c"})
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("third submit error = %v, want queue full", err)
	}
	if _, err := tm.GetTaskResult(ctx, "c"); !errors.Is(err, ErrTaskNotFound) {
		t.Error("rejected task left in the store")
	}
	if s := tm.Stats(); s.QueueDepth != 1 || s.Workers != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestTaskManagerRejectsDuplicateAndStopped(t *testing.T) {
	r := &stubRunner{run: okOutcome}
	tm, _, _ := startManager(t, r, 1, 4)
	ctx := context.Background()

	if err := tm.SubmitGenerateTask(ctx, "dup", GenerateRequest{}); err != nil {
		t.Fatal(err)
	}
	if err := tm.SubmitGenerateTask(ctx, "dup", GenerateRequest{}); !errors.Is(err, ErrDuplicateTask) {
		t.Errorf("duplicate submit error = %v", err)
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := tm.Stop(stopCtx); err != nil {
		t.Fatal(err)
	}
	if tm.IsHealthy() {
		t.Error("stopped manager reports healthy")
	}
	if err := tm.SubmitGenerateTask(ctx, "late", GenerateRequest{}); !errors.Is(err, ErrNotRunning) {
		t.Errorf("submit after stop error = %v", err)
	}
}

func TestValidateTaskManagerConfig(t *testing.T) {
	tests := []struct {
		name           string
		workers, queue int
		wantW, wantQ   int
		wantErr        bool
	}{
		{"defaults", 0, 0, DefaultMaxWorkers, DefaultMaxQueueSize, false},
		{"explicit", 4, 50, 4, 50, false},
		{"too many workers", MaxWorkers + 1, 10, 0, 0, true},
		{"queue too large", 4, MaxQueueSize + 1, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			cfg.Workers.PoolSize = tt.workers
			cfg.Workers.QueueSize = tt.queue
			w, q, err := validateTaskManagerConfig(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v", err)
			}
			if w != tt.wantW || q != tt.wantQ {
				t.Errorf("got %d/%d, want %d/%d", w, q, tt.wantW, tt.wantQ)
			}
		})
	}
}
