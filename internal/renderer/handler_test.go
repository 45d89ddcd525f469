package renderer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"resumetex/internal/latex"
)

type compilerFunc func(ctx context.Context, doc string) (*latex.CompileResult, error)

func (f compilerFunc) Compile(ctx context.Context, doc string) (*latex.CompileResult, error) {
	return f(ctx, doc)
}

const doc = "\\documentclass{article}\n\\begin{document}\nHello\n\\end{document}\n"

func TestCompile(t *testing.T) {
	calls := 0
	h := NewHandler(compilerFunc(func(_ context.Context, src string) (*latex.CompileResult, error) {
		calls++
		if strings.Contains(src, `\oops`) {
			return nil, &latex.CompilationError{DiagnosticLog: "! Undefined control sequence.\nl.3 \\oops"}
		}
		return &latex.CompileResult{PDF: []byte("%PDF-1.5"), PageCount: 1}, nil
	}), Options{MaxURIBytes: 4096})

	tests := []struct {
		name     string
		req      *http.Request
		wantCode int
		wantBody string
	}{
		{
			name:     "get",
			req:      httptest.NewRequest(http.MethodGet, "/compile?text="+url.QueryEscape(doc), nil),
			wantCode: http.StatusOK,
			wantBody: "%PDF-1.5",
		},
		{
			name:     "post",
			req:      jsonRequest(`{"latex":"\\documentclass{article}\\begin{document}x\\end{document}"}`),
			wantCode: http.StatusOK,
		},
		{
			name:     "engine error",
			req:      httptest.NewRequest(http.MethodGet, "/compile?text="+url.QueryEscape(strings.Replace(doc, "Hello", `\oops`, 1)), nil),
			wantCode: http.StatusBadRequest,
			wantBody: "Undefined control sequence",
		},
		{
			name:     "unsafe",
			req:      httptest.NewRequest(http.MethodGet, "/compile?text="+url.QueryEscape(strings.Replace(doc, "Hello", `\immediate\write18{id}`, 1)), nil),
			wantCode: http.StatusBadRequest,
			wantBody: "latex rejected",
		},
		{
			name:     "empty",
			req:      httptest.NewRequest(http.MethodGet, "/compile", nil),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "uri too long",
			req:      httptest.NewRequest(http.MethodGet, "/compile?text="+strings.Repeat("a", 5000), nil),
			wantCode: http.StatusRequestURITooLong,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, tt.req)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body)
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", rec.Body, tt.wantBody)
			}
		})
	}
	if calls != 3 {
		t.Errorf("compiler called %d times, want 3", calls)
	}
}

func TestBackendUnavailable(t *testing.T) {
	h := NewHandler(compilerFunc(func(context.Context, string) (*latex.CompileResult, error) {
		return nil, &latex.BackendUnavailableError{Backend: latex.BackendLocal, Err: context.DeadlineExceeded}
	}), Options{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/compile?text="+url.QueryEscape(doc), nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
}

func jsonRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/compile", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}
