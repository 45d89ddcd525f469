package latex

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const sampleDoc = "\\documentclass{article}\n\\begin{document}\nHello\n\\end{document}\n"

func stubPages(n int) func([]byte) (int, error) {
	return func([]byte) (int, error) { return n, nil }
}

// fakeEngine writes an executable shell script standing in for pdflatex.
// The output directory is the fifth argument.
func fakeEngine(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell-script engines need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-pdflatex")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

const succeedingEngine = `echo fake > "$5/document.pdf"
`

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("temp dir not cleaned up: %d entries left", len(entries))
	}
}

func TestCompileRemoteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/compile" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("text"); got != sampleDoc {
			t.Errorf("text param = %q", got)
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 remote"))
	}))
	defer srv.Close()

	c := NewCompiler(CompilerConfig{RemoteURL: srv.URL, RemoteMaxBytes: 10000, RemoteRate: 100})
	c.countPages = stubPages(1)

	res, err := c.Compile(context.Background(), sampleDoc)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if res.Backend != BackendRemote || res.PageCount != 1 || string(res.PDF) != "%PDF-1.4 remote" {
		t.Errorf("Compile() = %+v", res)
	}
}

func TestCompileRemoteStatusHandling(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantCompile bool
		wantBackend bool
	}{
		{"bad request is a compile error", http.StatusBadRequest, "! Undefined control sequence.\nl.3 \\foo", true, false},
		{"server error is backend unavailable", http.StatusBadGateway, "upstream down", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, tt.body, tt.status)
			}))
			defer srv.Close()

			c := NewCompiler(CompilerConfig{RemoteURL: srv.URL, RemoteMaxBytes: 10000})
			c.countPages = stubPages(1)
			_, err := c.Compile(context.Background(), sampleDoc)

			var compileErr *CompilationError
			if got := errors.As(err, &compileErr); got != tt.wantCompile {
				t.Errorf("CompilationError = %v, want %v (err %v)", got, tt.wantCompile, err)
			}
			if tt.wantCompile && !strings.Contains(compileErr.DiagnosticLog, "Undefined control sequence") {
				t.Errorf("DiagnosticLog = %q", compileErr.DiagnosticLog)
			}
			var unavailable *BackendUnavailableError
			if got := errors.As(err, &unavailable); got != tt.wantBackend {
				t.Errorf("BackendUnavailableError = %v, want %v (err %v)", got, tt.wantBackend, err)
			}
		})
	}
}

func TestCompileRemoteTooLargeFallsBackToLocal(t *testing.T) {
	for _, status := range []int{http.StatusRequestURITooLong, http.StatusRequestHeaderFieldsTooLarge} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var hits int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				w.WriteHeader(status)
			}))
			defer srv.Close()

			tmp := t.TempDir()
			c := NewCompiler(CompilerConfig{
				Engine:         fakeEngine(t, succeedingEngine),
				RemoteURL:      srv.URL,
				RemoteMaxBytes: 10000,
				TempDir:        tmp,
			})
			c.countPages = stubPages(2)

			res, err := c.Compile(context.Background(), sampleDoc)
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}
			if res.Backend != BackendLocal || res.PageCount != 2 {
				t.Errorf("Compile() = %+v", res)
			}
			if atomic.LoadInt32(&hits) != 1 {
				t.Errorf("remote hits = %d, want 1", hits)
			}
			assertEmptyDir(t, tmp)
		})
	}
}

func TestCompileSelectsBackendBySize(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte("%PDF"))
	}))
	defer srv.Close()

	engine := fakeEngine(t, succeedingEngine)

	tests := []struct {
		name        string
		cfg         CompilerConfig
		wantBackend string
	}{
		{"small document goes remote", CompilerConfig{Engine: engine, RemoteURL: srv.URL, RemoteMaxBytes: 10000}, BackendRemote},
		{"large document stays local", CompilerConfig{Engine: engine, RemoteURL: srv.URL, RemoteMaxBytes: 10}, BackendLocal},
		{"local only", CompilerConfig{Engine: engine, RemoteURL: srv.URL, RemoteMaxBytes: 10000, LocalOnly: true}, BackendLocal},
		{"no renderer configured", CompilerConfig{Engine: engine}, BackendLocal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.TempDir = t.TempDir()
			c := NewCompiler(tt.cfg)
			c.countPages = stubPages(1)
			res, err := c.Compile(context.Background(), sampleDoc)
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}
			if res.Backend != tt.wantBackend {
				t.Errorf("Backend = %s, want %s", res.Backend, tt.wantBackend)
			}
		})
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("remote hits = %d, want 1", hits)
	}
}

func TestCompileLocalFailureReadsLogTail(t *testing.T) {
	script := `printf 'This is pdfTeX\n! Missing } inserted.\nl.3 Intro\n' > "$5/document.log"
echo "console noise"
exit 1
`
	tmp := t.TempDir()
	c := NewCompiler(CompilerConfig{Engine: fakeEngine(t, script), TempDir: tmp, LogTailLines: 2})
	c.countPages = stubPages(1)

	_, err := c.Compile(context.Background(), sampleDoc)
	var compileErr *CompilationError
	if !errors.As(err, &compileErr) {
		t.Fatalf("error = %v, want *CompilationError", err)
	}
	if compileErr.DiagnosticLog != "! Missing } inserted.\nl.3 Intro" {
		t.Errorf("DiagnosticLog = %q", compileErr.DiagnosticLog)
	}
	if compileErr.TimedOut {
		t.Errorf("TimedOut = true for a plain failure")
	}
	assertEmptyDir(t, tmp)
}

func TestCompileLocalFailureFallsBackToConsoleOutput(t *testing.T) {
	script := `echo "! Emergency stop."
exit 1
`
	c := NewCompiler(CompilerConfig{Engine: fakeEngine(t, script), TempDir: t.TempDir()})
	_, err := c.Compile(context.Background(), sampleDoc)
	var compileErr *CompilationError
	if !errors.As(err, &compileErr) {
		t.Fatalf("error = %v, want *CompilationError", err)
	}
	if !strings.Contains(compileErr.DiagnosticLog, "Emergency stop") {
		t.Errorf("DiagnosticLog = %q", compileErr.DiagnosticLog)
	}
}

func TestCompileLocalTimeoutKillsEngine(t *testing.T) {
	script := `sleep 10
echo fake > "$5/document.pdf"
`
	tmp := t.TempDir()
	c := NewCompiler(CompilerConfig{Engine: fakeEngine(t, script), TempDir: tmp, Timeout: 200 * time.Millisecond})
	c.countPages = stubPages(1)

	start := time.Now()
	_, err := c.Compile(context.Background(), sampleDoc)
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Compile took %s after a 200ms timeout", elapsed)
	}
	var compileErr *CompilationError
	if !errors.As(err, &compileErr) || !compileErr.TimedOut {
		t.Fatalf("error = %v, want timed out *CompilationError", err)
	}
	assertEmptyDir(t, tmp)
}

func TestCompileMissingEngine(t *testing.T) {
	c := NewCompiler(CompilerConfig{Engine: "definitely-not-a-tex-engine"})
	_, err := c.Compile(context.Background(), sampleDoc)
	var unavailable *BackendUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("error = %v, want *BackendUnavailableError", err)
	}
	if unavailable.Backend != BackendLocal {
		t.Errorf("Backend = %s", unavailable.Backend)
	}
}

func TestCompileUnreadablePDF(t *testing.T) {
	c := NewCompiler(CompilerConfig{Engine: fakeEngine(t, succeedingEngine), TempDir: t.TempDir()})
	_, err := c.Compile(context.Background(), sampleDoc)
	var compileErr *CompilationError
	if !errors.As(err, &compileErr) {
		t.Fatalf("error = %v, want *CompilationError for a non-PDF payload", err)
	}
}

func TestCappedBuffer(t *testing.T) {
	b := &cappedBuffer{limit: 4}
	n, err := b.Write([]byte("abcdef"))
	if n != 6 || err != nil {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	_, _ = b.Write([]byte("gh"))
	if got := b.String(); got != "abcd\n[output truncated]" {
		t.Errorf("String() = %q", got)
	}
}
